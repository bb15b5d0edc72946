package world

import (
	"encoding/json"

	"go.uber.org/zap"

	"buildcraft.ai/internal/protocol"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/occupancy"
	"buildcraft.ai/internal/sim/workers"
)

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	// EveryTicks slows this observer below the configured frame rate.
	EveryTicks int
}

type observerClient struct {
	id    string
	out   chan []byte
	every int
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil && old.out != req.Out {
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{id: req.SessionID, out: req.Out, every: req.EveryTicks}
	w.log.Debug("observer joined", zap.String("session", req.SessionID))
}

func (w *World) handleObserverLeave(id string) {
	o := w.observers[id]
	if o == nil {
		return
	}
	delete(w.observers, id)
	close(o.out)
	w.log.Debug("observer left", zap.String("session", id))
}

func (w *World) publishFrames(tick uint64) {
	if len(w.observers) == 0 {
		return
	}
	var b []byte
	for _, o := range w.observers {
		every := w.tune.FrameEveryTicks
		if o.every > every {
			every = o.every
		}
		if every > 1 && tick%uint64(every) != 0 {
			continue
		}
		if b == nil {
			var err error
			b, err = json.Marshal(w.Frame())
			if err != nil {
				w.log.Error("frame encode failed", zap.Error(err))
				return
			}
		}
		sendLatest(o.out, b)
	}
}

// Frame is the read-only view handed to renderers. Loop goroutine only.
func (w *World) Frame() protocol.FrameMsg {
	f := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Width:           w.g.Width,
		Height:          w.g.Height,
		Cells:           []protocol.CellView{},
		Ghosts:          []protocol.GhostView{},
		Workers:         []protocol.WorkerView{},
	}

	for i := 0; i < w.g.Size(); i++ {
		c := w.g.CellAt(i)
		v := protocol.CellView{X: c.X, Y: c.Y, Walkable: w.occ.IsWalkable(c)}
		v.Floor = w.occupantType(occupancy.LayerFloor, c)
		v.Structure = w.occupantType(occupancy.LayerStructure, c)
		v.Door = w.occupantType(occupancy.LayerDoor, c)
		if variant, ok := w.occ.WallVariant(c); ok {
			v.Wall = string(variant)
		}
		_, v.Pending = w.occ.PendingAt(c)
		if v.Floor == "" && v.Structure == "" && v.Door == "" && !v.Pending && v.Walkable {
			continue
		}
		f.Cells = append(f.Cells, v)
	}

	for _, g := range w.sites.All() {
		f.Ghosts = append(f.Ghosts, protocol.GhostView{
			ID:       uint32(g.ID),
			TypeID:   g.Type.ID,
			X:        g.Cell.X,
			Y:        g.Cell.Y,
			State:    g.State.String(),
			Progress: g.Progress,
			Worker:   uint32(g.Worker),
		})
	}

	w.pool.Each(func(wk *workers.Worker) {
		f.Workers = append(f.Workers, protocol.WorkerView{
			ID:    uint32(wk.ID),
			Pos:   [2]float64{wk.Pos.X, wk.Pos.Y},
			State: wk.State.String(),
			Job:   uint32(wk.Job),
		})
	})

	js := w.sched.Stats()
	ss := w.sites.Stats()
	f.Jobs = protocol.JobCounters{
		Pending:   js.Pending,
		Active:    js.Active,
		Completed: ss.Completed,
		Requeued:  js.Requeued,
		TimedOut:  js.TimedOut,
		Cancelled: ss.Cancelled,
		TrapRisks: ss.TrapRisks,
	}
	return f
}

func (w *World) occupantType(l occupancy.Layer, c grid.Cell) string {
	id, ok := w.occ.OccupantAt(l, c)
	if !ok {
		return ""
	}
	o, ok := w.occ.Occupant(id)
	if !ok {
		return ""
	}
	return o.Type.ID
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
