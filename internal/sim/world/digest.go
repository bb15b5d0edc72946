package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/occupancy"
	"buildcraft.ai/internal/sim/workers"
)

// Digest hashes the tick counter, every cell's layers, the live ghosts, the workers and
// the job queue. Two worlds fed the same requests from the same seed produce the same
// digest after every tick.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.tick.Load())
	digestWriteU64(h, &tmp, uint64(w.g.Width))
	digestWriteU64(h, &tmp, uint64(w.g.Height))
	w.digestCells(h, &tmp)
	w.digestGhosts(h, &tmp)
	w.digestWorkers(h, &tmp)
	w.digestJobs(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestCells(h hashWriter, tmp *[8]byte) {
	layers := []occupancy.Layer{occupancy.LayerFloor, occupancy.LayerStructure, occupancy.LayerDoor}
	for i := 0; i < w.g.Size(); i++ {
		c := w.g.CellAt(i)
		for _, l := range layers {
			id, _ := w.occ.OccupantAt(l, c)
			digestWriteU64(h, tmp, uint64(id))
		}
		ghost, _ := w.occ.PendingAt(c)
		digestWriteU64(h, tmp, uint64(ghost))
		mask, _ := w.occ.WallMask(c)
		h.Write([]byte{boolByte(w.occ.IsWalkable(c)), byte(mask)})
	}
}

func (w *World) digestGhosts(h hashWriter, tmp *[8]byte) {
	for _, g := range w.sites.All() {
		digestWriteU64(h, tmp, uint64(g.ID))
		h.Write([]byte(g.Type.ID))
		digestWriteCell(h, tmp, g.Cell)
		h.Write([]byte{byte(g.State)})
		digestWriteF64(h, tmp, g.Progress)
		digestWriteU64(h, tmp, uint64(g.Worker))
	}
}

func (w *World) digestWorkers(h hashWriter, tmp *[8]byte) {
	w.pool.Each(func(wk *workers.Worker) {
		digestWriteU64(h, tmp, uint64(wk.ID))
		digestWriteF64(h, tmp, wk.Pos.X)
		digestWriteF64(h, tmp, wk.Pos.Y)
		h.Write([]byte{byte(wk.State)})
		digestWriteU64(h, tmp, uint64(wk.Job))
		digestWriteU64(h, tmp, uint64(wk.Cursor))
		digestWriteU64(h, tmp, uint64(len(wk.Route)))
		digestWriteF64(h, tmp, wk.IdleTimer)
	})
}

func (w *World) digestJobs(h hashWriter, tmp *[8]byte) {
	for _, g := range w.sched.Pending() {
		digestWriteU64(h, tmp, uint64(g))
	}
	digestWriteU64(h, tmp, uint64(w.sched.ActiveCount()))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteCell(h hashWriter, tmp *[8]byte, c grid.Cell) {
	digestWriteU64(h, tmp, uint64(int64(c.X)))
	digestWriteU64(h, tmp, uint64(int64(c.Y)))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
