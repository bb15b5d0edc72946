package world

import (
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/jobs"
	"buildcraft.ai/internal/sim/workers"
)

// jobWorkers is the worker pool as the scheduler sees it.
type jobWorkers struct{ w *World }

func (a *jobWorkers) Available() []jobs.Candidate {
	idle := a.w.pool.Idle()
	out := make([]jobs.Candidate, 0, len(idle))
	for _, wk := range idle {
		out = append(out, jobs.Candidate{ID: wk.ID, Pos: wk.Pos})
	}
	return out
}

func (a *jobWorkers) MovingToJob(id entity.WorkerID) bool {
	wk, ok := a.w.pool.Get(id)
	return ok && wk.State == workers.MovingToJob
}

// Assign plans the route to the job's work position up front so the worker moves on the
// same tick.
func (a *jobWorkers) Assign(id entity.WorkerID, ghost entity.GhostID) bool {
	wk, ok := a.w.pool.Get(id)
	if !ok {
		return false
	}
	var route []grid.Vec2
	if wp, ok := a.w.env.WorkPosition(ghost, id); ok {
		route = a.w.env.Route(wk.Pos, wp)
	}
	return a.w.pool.Assign(id, ghost, a.w.now, route)
}

func (a *jobWorkers) ForceRelease(id entity.WorkerID) { a.w.pool.Release(id) }

// siteHooks forwards construction lifecycle events to the scheduler and the pool.
type siteHooks struct{ w *World }

func (h *siteHooks) JobCompleted(ghost entity.GhostID) { h.w.sched.CompleteJob(ghost) }

func (h *siteHooks) JobCancelled(ghost entity.GhostID) {
	if wk, ok := h.w.sched.CancelJob(ghost); ok {
		h.w.pool.Release(wk)
	}
}

func (h *siteHooks) ReleaseWorker(id entity.WorkerID) { h.w.pool.Release(id) }

// bulldozeListener destroys the ghost behind a bulldozed pending construction.
type bulldozeListener struct{ w *World }

func (l *bulldozeListener) PendingCancelled(ghost entity.GhostID, _ grid.Cell) {
	l.w.sites.Cancel(ghost)
}

// simEnv is what a worker sees of the world.
type simEnv struct{ w *World }

var _ workers.Env = (*simEnv)(nil)

// Route plans between world positions over cell centres. The last waypoint is the exact
// destination when the planner reached its cell; a move inside one cell is direct.
func (e *simEnv) Route(from, to grid.Vec2) []grid.Vec2 {
	g := e.w.g
	start := g.Clamp(g.WorldToCell(from))
	target := g.WorldToCell(to)
	if start == target {
		return []grid.Vec2{from, to}
	}
	cells := e.w.planner.FindPath(start, target)
	out := make([]grid.Vec2, len(cells))
	for i, c := range cells {
		out[i] = g.CellToWorld(c)
	}
	if n := len(cells); n > 1 && cells[n-1] == target {
		out[n-1] = to
	}
	return out
}

func (e *simEnv) Snap(p grid.Vec2) grid.Vec2 {
	g := e.w.g
	return g.CellToWorld(g.Clamp(g.WorldToCell(p)))
}

func (e *simEnv) Float64() float64 { return e.w.pool.Float64() }

func (e *simEnv) JobSite(ghost entity.GhostID) (grid.Vec2, bool) {
	g, ok := e.w.sites.Get(ghost)
	if !ok {
		return grid.Vec2{}, false
	}
	return e.w.g.CellToWorld(g.Cell), true
}

func (e *simEnv) WorkPosition(ghost entity.GhostID, self entity.WorkerID) (grid.Vec2, bool) {
	return e.w.sites.WorkPosition(ghost, func(p grid.Vec2, radius float64) bool {
		return len(e.w.pool.Nearby(self, p, radius)) > 0
	})
}

func (e *simEnv) StartBuilding(ghost entity.GhostID, self entity.WorkerID, pos grid.Vec2) error {
	return e.w.sites.StartBuilding(ghost, self, e.w.g.WorldToCell(pos))
}

func (e *simEnv) ContinueBuilding(ghost entity.GhostID, dt float64) (bool, error) {
	return e.w.sites.ContinueBuilding(ghost, dt)
}

func (e *simEnv) StopBuilding(ghost entity.GhostID) { e.w.sites.StopBuilding(ghost) }

func (e *simEnv) WorkerFinishedJob(self entity.WorkerID) { e.w.sched.WorkerFinishedJob(self) }

func (e *simEnv) WorkerTimedOutOnJob(self entity.WorkerID) { e.w.sched.WorkerTimedOutOnJob(self) }

func (e *simEnv) Neighbors(self entity.WorkerID, p grid.Vec2, radius float64) []grid.Vec2 {
	return e.w.pool.Nearby(self, p, radius)
}
