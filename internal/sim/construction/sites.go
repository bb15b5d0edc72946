package construction

import (
	"fmt"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

// Occupancy is the slice of the occupancy grid that construction drives.
type Occupancy interface {
	Walkability
	Bounds() grid.Grid
	CanPlace(bt catalogs.BuildingType, c grid.Cell) error
	Place(bt catalogs.BuildingType, c grid.Cell, ghost entity.GhostID) error
	RegisterCompleted(ghost entity.GhostID, bt catalogs.BuildingType, c grid.Cell) (entity.OccupantID, error)
}

// Hooks receive lifecycle events. The world wires them to the scheduler and worker pool.
type Hooks interface {
	JobCompleted(ghost entity.GhostID)
	JobCancelled(ghost entity.GhostID)
	ReleaseWorker(w entity.WorkerID)
}

// Sites owns every live ghost.
type Sites struct {
	occ    Occupancy
	ghosts *entity.Arena[entity.GhostID, Ghost]
	hooks  Hooks
	log    *zap.Logger

	completed int
	cancelled int
	trapped   int
}

func NewSites(occ Occupancy, log *zap.Logger) *Sites {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sites{
		occ:    occ,
		ghosts: entity.NewArena[entity.GhostID, Ghost](),
		log:    log,
	}
}

func (s *Sites) SetHooks(h Hooks) { s.hooks = h }

// Create validates and queues a placement. Rejections are returned from the occupancy
// grid unchanged.
func (s *Sites) Create(bt catalogs.BuildingType, c grid.Cell) (entity.GhostID, error) {
	if err := s.occ.CanPlace(bt, c); err != nil {
		return 0, err
	}
	id := s.ghosts.Insert(Ghost{Type: bt, Cell: c, State: Pending})
	g, _ := s.ghosts.Get(id)
	g.ID = id
	if err := s.occ.Place(bt, c, id); err != nil {
		s.ghosts.Remove(id)
		return 0, err
	}
	s.log.Debug("ghost created", zap.Uint32("ghost", uint32(id)), zap.String("type", bt.ID), zap.Stringer("cell", c))
	return id, nil
}

// Get returns a copy of the ghost.
func (s *Sites) Get(id entity.GhostID) (Ghost, bool) {
	g, ok := s.ghosts.Get(id)
	if !ok {
		return Ghost{}, false
	}
	return *g, true
}

func (s *Sites) Exists(id entity.GhostID) bool { return s.ghosts.Has(id) }

// StartBuilding moves a Pending ghost to InProgress under worker. It fails without a
// state change when the ghost is gone, already in progress, or the trap heuristic fires.
func (s *Sites) StartBuilding(id entity.GhostID, worker entity.WorkerID, workerCell grid.Cell) error {
	g, err := s.ghosts.Lookup(id)
	if err != nil {
		return err
	}
	if g.State == InProgress {
		return ErrAlreadyBuilding
	}
	if WouldTrapWorker(s.occ, g.Type, g.Cell, workerCell) {
		s.trapped++
		s.log.Info("construction start refused: trap risk",
			zap.Uint32("ghost", uint32(id)),
			zap.Uint32("worker", uint32(worker)),
			zap.Stringer("cell", g.Cell),
			zap.Stringer("worker_cell", workerCell),
		)
		return ErrTrapRisk
	}
	g.State = InProgress
	g.Worker = worker
	return nil
}

// ContinueBuilding advances progress by dt. It is a no-op unless the ghost is
// InProgress and dt is positive. On reaching 1 the occupant is registered, the
// scheduler and the worker are notified and the ghost is destroyed.
func (s *Sites) ContinueBuilding(id entity.GhostID, dt float64) (bool, error) {
	g, err := s.ghosts.Lookup(id)
	if err != nil {
		return false, err
	}
	if g.State != InProgress || dt <= 0 {
		return false, nil
	}
	g.advance(dt)
	if !g.complete() {
		return false, nil
	}
	return true, s.finalize(g)
}

func (s *Sites) finalize(g *Ghost) error {
	occ, err := s.occ.RegisterCompleted(g.ID, g.Type, g.Cell)
	if err != nil {
		s.log.Error("construction registration failed", zap.Uint32("ghost", uint32(g.ID)), zap.Error(err))
		return fmt.Errorf("finalize ghost %d: %w", g.ID, err)
	}
	id, worker := g.ID, g.Worker
	s.ghosts.Remove(id)
	s.completed++
	s.log.Debug("construction complete",
		zap.Uint32("ghost", uint32(id)),
		zap.Uint32("occupant", uint32(occ)),
		zap.String("type", g.Type.ID),
		zap.Stringer("cell", g.Cell),
	)
	if s.hooks != nil {
		s.hooks.JobCompleted(id)
		if worker != 0 {
			s.hooks.ReleaseWorker(worker)
		}
	}
	return nil
}

// StopBuilding returns an InProgress ghost to Pending and clears its worker. Progress is kept.
func (s *Sites) StopBuilding(id entity.GhostID) bool {
	g, ok := s.ghosts.Get(id)
	if !ok || g.State != InProgress {
		return false
	}
	g.State = Pending
	g.Worker = 0
	return true
}

// Cancel destroys a ghost whose pending entry was already removed from the grid.
func (s *Sites) Cancel(id entity.GhostID) bool {
	if !s.ghosts.Remove(id) {
		return false
	}
	s.cancelled++
	s.log.Debug("construction cancelled", zap.Uint32("ghost", uint32(id)))
	if s.hooks != nil {
		s.hooks.JobCancelled(id)
	}
	return true
}

// WorkPosition is the stand point for building id; see the package-level WorkPosition.
func (s *Sites) WorkPosition(id entity.GhostID, occupied func(p grid.Vec2, radius float64) bool) (grid.Vec2, bool) {
	g, ok := s.ghosts.Get(id)
	if !ok {
		return grid.Vec2{}, false
	}
	return WorkPosition(s.occ, s.occ.Bounds(), g.Cell, occupied), true
}

// All returns copies of every live ghost in handle order.
func (s *Sites) All() []Ghost {
	out := make([]Ghost, 0, s.ghosts.Len())
	s.ghosts.Each(func(_ entity.GhostID, g *Ghost) { out = append(out, *g) })
	return out
}

func (s *Sites) Len() int { return s.ghosts.Len() }

type Stats struct {
	Live      int `json:"live"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	TrapRisks int `json:"trap_risks"`
}

func (s *Sites) Stats() Stats {
	return Stats{Live: s.ghosts.Len(), Completed: s.completed, Cancelled: s.cancelled, TrapRisks: s.trapped}
}
