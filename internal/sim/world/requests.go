package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/occupancy"
)

type RequestKind string

const (
	ReqPlace       RequestKind = "PLACE"
	ReqBulldoze    RequestKind = "BULLDOZE"
	ReqSpawnWorker RequestKind = "SPAWN_WORKER"
	ReqCancelAll   RequestKind = "CANCEL_ALL"
)

var (
	ErrMissingCell    = errors.New("world: request needs a cell")
	ErrUnknownRequest = errors.New("world: unknown request kind")
)

// Request is a placement-input call. Requests queued during a tick are applied in arrival
// order at the start of the next one.
type Request struct {
	Kind   RequestKind `json:"kind"`
	TypeID string      `json:"type_id,omitempty"`
	Cell   *grid.Cell  `json:"cell,omitempty"`
	// Actor names the session that sent the request, for audits.
	Actor string `json:"actor,omitempty"`

	// Resp receives the outcome. It should be buffered; the loop never blocks on it.
	Resp chan<- Result `json:"-"`
}

type Result struct {
	Tick   uint64
	Err    error
	Ghost  entity.GhostID
	Worker entity.WorkerID
	// Removed is the layer a bulldoze cleared, LayerNone for an empty cell.
	Removed occupancy.Layer
	// Cancelled counts the ghosts removed by CANCEL_ALL.
	Cancelled int
}

func (w *World) apply(tick uint64, r Request) Result {
	res := Result{Tick: tick}
	switch r.Kind {
	case ReqPlace:
		if r.Cell == nil {
			res.Err = ErrMissingCell
			break
		}
		res.Ghost, res.Err = w.place(tick, r.Actor, r.TypeID, *r.Cell)
	case ReqBulldoze:
		if r.Cell == nil {
			res.Err = ErrMissingCell
			break
		}
		res.Removed = w.bulldoze(tick, r.Actor, *r.Cell)
	case ReqSpawnWorker:
		res.Worker, res.Err = w.spawnWorker(tick, r.Actor, r.Cell)
	case ReqCancelAll:
		res.Cancelled = w.cancelAll(tick, r.Actor)
	default:
		res.Err = fmt.Errorf("%w: %q", ErrUnknownRequest, r.Kind)
	}
	return res
}

// place validates a placement, creates its ghost and queues the job. Rejections come back
// as *occupancy.PlacementError.
func (w *World) place(tick uint64, actor, typeID string, c grid.Cell) (entity.GhostID, error) {
	bt, ok := w.cat.Get(typeID)
	if !ok {
		err := &occupancy.PlacementError{Reason: occupancy.UnknownType, Cell: c}
		w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "PLACE_REJECTED", Cell: cellPair(c), TypeID: typeID, Reason: string(occupancy.UnknownType)})
		return 0, err
	}
	ghost, err := w.sites.Create(bt, c)
	if err != nil {
		reason := err.Error()
		var pe *occupancy.PlacementError
		if errors.As(err, &pe) {
			reason = string(pe.Reason)
		}
		w.log.Debug("placement rejected", zap.String("type", typeID), zap.Stringer("cell", c), zap.String("reason", reason))
		w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "PLACE_REJECTED", Cell: cellPair(c), TypeID: typeID, Reason: reason})
		return 0, err
	}
	w.ghostMeta[ghost] = ghostMeta{typeID: bt.ID, cell: c}
	w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "PLACE", Cell: cellPair(c), TypeID: bt.ID, Ghost: uint32(ghost)})
	w.sched.AddJob(ghost)
	return ghost, nil
}

func (w *World) bulldoze(tick uint64, actor string, c grid.Cell) occupancy.Layer {
	var typeID string
	for _, l := range []occupancy.Layer{occupancy.LayerDoor, occupancy.LayerStructure, occupancy.LayerFloor} {
		if id, ok := w.occ.OccupantAt(l, c); ok {
			if o, ok := w.occ.Occupant(id); ok {
				typeID = o.Type.ID
			}
			break
		}
	}
	layer, removed := w.occ.Bulldoze(c)
	if !removed {
		return occupancy.LayerNone
	}
	if layer == occupancy.LayerPending {
		typeID = ""
	}
	w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "BULLDOZE", Cell: cellPair(c), TypeID: typeID, Reason: layer.String()})
	return layer
}

func (w *World) spawnWorker(tick uint64, actor string, at *grid.Cell) (entity.WorkerID, error) {
	var id entity.WorkerID
	if at != nil {
		if !w.g.InBounds(*at) {
			return 0, &occupancy.PlacementError{Reason: occupancy.OutOfBounds, Cell: *at}
		}
		id = w.pool.Spawn(w.g.CellToWorld(*at))
	} else {
		area := grid.Vec2{X: w.tune.Spawn.AreaWidth * w.g.CellSize, Y: w.tune.Spawn.AreaHeight * w.g.CellSize}
		id = w.pool.SpawnInArea(w.g.Center(), area)
	}
	wk, _ := w.pool.Get(id)
	w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "SPAWN_WORKER", Cell: cellPair(w.g.WorldToCell(wk.Pos)), Worker: uint32(id)})
	return id, nil
}

// cancelAll stops every job, frees the workers and removes every ghost from the grid.
func (w *World) cancelAll(tick uint64, actor string) int {
	w.sched.CancelAll()
	n := 0
	for _, g := range w.sites.All() {
		if _, ok := w.occ.Bulldoze(g.Cell); ok {
			n++
		}
	}
	w.log.Info("all jobs cancelled", zap.Int("ghosts", n))
	w.audit(AuditEntry{Tick: tick, Actor: actor, Action: "CANCEL_ALL", Reason: fmt.Sprintf("%d ghosts", n)})
	return n
}

func cellPair(c grid.Cell) [2]int { return [2]int{c.X, c.Y} }

func reply(ch chan<- Result, res Result) {
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
	}
}
