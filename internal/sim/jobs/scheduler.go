// Package jobs queues construction jobs and matches them to idle workers.
//
// The pending list is FIFO except for door promotion. Assignment runs on a fixed
// interval, independent of the tick rate. The scheduler references ghosts by handle;
// it never owns them.
package jobs

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/construction"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

// Sites is the construction side the scheduler reads and interrupts.
type Sites interface {
	Get(id entity.GhostID) (construction.Ghost, bool)
	StopBuilding(id entity.GhostID) bool
}

// Candidate is an idle worker offered to an assignment pass.
type Candidate struct {
	ID  entity.WorkerID
	Pos grid.Vec2
}

// Workers is the worker pool as seen by the scheduler.
type Workers interface {
	// Available lists idle workers without a job, in handle order.
	Available() []Candidate
	MovingToJob(w entity.WorkerID) bool
	// Assign hands ghost to w and moves it to MovingToJob.
	Assign(w entity.WorkerID, ghost entity.GhostID) bool
	// ForceRelease drops w's job and returns it to Idle.
	ForceRelease(w entity.WorkerID)
}

type Map interface {
	Bounds() grid.Grid
	IsWalkable(c grid.Cell) bool
}

type Reachability interface {
	Reachable(from, to grid.Cell) bool
}

type Config struct {
	IntervalSeconds float64
	// MaxJobDistance is in cells.
	MaxJobDistance float64
}

type Scheduler struct {
	cfg     Config
	sites   Sites
	workers Workers
	m       Map
	paths   Reachability
	log     *zap.Logger
	sink    EventSink

	pending []entity.GhostID
	active  map[entity.WorkerID]entity.GhostID
	elapsed float64
	stats   Stats
}

func New(cfg Config, sites Sites, workers Workers, m Map, paths Reachability, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		sites:   sites,
		workers: workers,
		m:       m,
		paths:   paths,
		log:     log,
		active:  map[entity.WorkerID]entity.GhostID{},
	}
}

func (s *Scheduler) SetConfig(cfg Config) { s.cfg = cfg }

func (s *Scheduler) SetEventSink(fn EventSink) { s.sink = fn }

func (s *Scheduler) emit(k EventKind, g entity.GhostID, w entity.WorkerID) {
	if s.sink != nil {
		s.sink(Event{Kind: k, Ghost: g, Worker: w})
	}
}

// AddJob queues ghost. A door queued while some worker is still walking to an enclosed
// floor job jumps to the front, and those workers are timed out so the door gets built first.
func (s *Scheduler) AddJob(ghost entity.GhostID) {
	if s.isPending(ghost) || s.isActive(ghost) {
		return
	}
	g, ok := s.sites.Get(ghost)
	if !ok {
		return
	}
	s.stats.Queued++
	if !g.Type.IsDoor() {
		s.pending = append(s.pending, ghost)
		s.emit(JobQueued, ghost, 0)
		return
	}

	stranded := s.strandedWorkers()
	if len(stranded) == 0 {
		s.pending = append(s.pending, ghost)
		s.emit(JobQueued, ghost, 0)
		return
	}
	s.pending = append([]entity.GhostID{ghost}, s.pending...)
	s.stats.Promoted++
	s.emit(JobPromoted, ghost, 0)
	s.log.Info("door job promoted", zap.Uint32("ghost", uint32(ghost)), zap.Int("interrupted", len(stranded)))
	for _, w := range stranded {
		s.WorkerTimedOutOnJob(w)
		s.workers.ForceRelease(w)
	}
}

// strandedWorkers are workers in MovingToJob whose job is enclosed, in handle order.
func (s *Scheduler) strandedWorkers() []entity.WorkerID {
	var out []entity.WorkerID
	for _, w := range s.activeWorkers() {
		if s.workers.MovingToJob(w) && s.IsEnclosed(s.active[w]) {
			out = append(out, w)
		}
	}
	return out
}

// IsEnclosed is a best-effort probe: a floor job is enclosed when none of the eight
// edge and corner probe cells that are walkable can reach it. Other kinds never are.
func (s *Scheduler) IsEnclosed(ghost entity.GhostID) bool {
	g, ok := s.sites.Get(ghost)
	if !ok || !g.Type.IsFloor() {
		return false
	}
	b := s.m.Bounds()
	c := g.Cell
	probes := [8]grid.Cell{
		{X: 0, Y: c.Y},
		{X: b.Width - 1, Y: c.Y},
		{X: c.X, Y: 0},
		{X: c.X, Y: b.Height - 1},
		{X: 0, Y: 0},
		{X: b.Width - 1, Y: 0},
		{X: 0, Y: b.Height - 1},
		{X: b.Width - 1, Y: b.Height - 1},
	}
	for _, p := range probes {
		if !b.InBounds(p) || !s.m.IsWalkable(p) {
			continue
		}
		if p == c || s.paths.Reachable(p, c) {
			return false
		}
	}
	return true
}

// intervalSlack absorbs float error when dt sums to the interval, e.g. ten steps of 0.05.
const intervalSlack = 1e-9

// Tick runs an assignment pass whenever another interval of simulated time has elapsed.
// Leftover time carries into the next interval, so passes stay on a fixed cadence
// whatever the step size. At most one pass runs per call.
func (s *Scheduler) Tick(dt float64) bool {
	interval := s.cfg.IntervalSeconds
	s.elapsed += dt
	if interval <= 0 {
		s.elapsed = 0
		s.AssignPass()
		return true
	}
	if s.elapsed+intervalSlack < interval {
		return false
	}
	s.elapsed -= interval
	if s.elapsed >= interval {
		// A step longer than the interval does not queue a burst of passes.
		s.elapsed = math.Mod(s.elapsed, interval)
	}
	s.AssignPass()
	return true
}

// AssignPass walks the pending list in order, dropping jobs that are gone or already in
// progress, and gives each remaining job to the nearest idle worker within range.
func (s *Scheduler) AssignPass() int {
	s.stats.Passes++
	if len(s.pending) == 0 {
		return 0
	}
	avail := s.availableWorkers()
	if len(avail) == 0 {
		return 0
	}
	b := s.m.Bounds()
	maxDist := s.cfg.MaxJobDistance * b.CellSize
	assigned := 0

	kept := s.pending[:0]
	for i, ghost := range s.pending {
		if len(avail) == 0 {
			kept = append(kept, s.pending[i:]...)
			break
		}
		g, ok := s.sites.Get(ghost)
		if !ok || g.State == construction.InProgress {
			s.emit(JobDropped, ghost, 0)
			continue
		}
		at := b.CellToWorld(g.Cell)
		best, bestD := -1, math.Inf(1)
		for j, c := range avail {
			d := c.Pos.Dist(at)
			if d < bestD && d <= maxDist {
				best, bestD = j, d
			}
		}
		if best < 0 {
			kept = append(kept, ghost)
			continue
		}
		w := avail[best].ID
		if !s.workers.Assign(w, ghost) {
			kept = append(kept, ghost)
			continue
		}
		avail = append(avail[:best], avail[best+1:]...)
		s.active[w] = ghost
		assigned++
		s.stats.Assigned++
		s.emit(JobAssigned, ghost, w)
		s.log.Debug("job assigned", zap.Uint32("ghost", uint32(ghost)), zap.Uint32("worker", uint32(w)), zap.Float64("distance", bestD))
	}
	s.pending = kept
	return assigned
}

func (s *Scheduler) availableWorkers() []Candidate {
	var out []Candidate
	for _, c := range s.workers.Available() {
		if _, busy := s.active[c.ID]; !busy {
			out = append(out, c)
		}
	}
	return out
}

// CompleteJob forgets ghost in both the pending list and the active map.
func (s *Scheduler) CompleteJob(ghost entity.GhostID) {
	s.removePending(ghost)
	w, _ := s.removeActive(ghost)
	s.stats.Completed++
	s.emit(JobCompleted, ghost, w)
}

// CancelJob forgets a ghost that no longer exists and reports the worker that held it.
func (s *Scheduler) CancelJob(ghost entity.GhostID) (entity.WorkerID, bool) {
	s.removePending(ghost)
	w, ok := s.removeActive(ghost)
	s.stats.Cancelled++
	s.emit(JobCancelled, ghost, w)
	return w, ok
}

// WorkerFinishedJob returns w's unfinished job to the back of the queue.
func (s *Scheduler) WorkerFinishedJob(w entity.WorkerID) {
	if ghost, ok := s.requeue(w); ok {
		s.stats.Requeued++
		s.emit(JobRequeued, ghost, w)
	}
}

// WorkerTimedOutOnJob has the same effect as WorkerFinishedJob; it is counted separately.
func (s *Scheduler) WorkerTimedOutOnJob(w entity.WorkerID) {
	if ghost, ok := s.requeue(w); ok {
		s.stats.TimedOut++
		s.emit(JobTimedOut, ghost, w)
		s.log.Info("job timed out", zap.Uint32("ghost", uint32(ghost)), zap.Uint32("worker", uint32(w)))
	}
}

func (s *Scheduler) requeue(w entity.WorkerID) (entity.GhostID, bool) {
	ghost, ok := s.active[w]
	if !ok {
		return 0, false
	}
	delete(s.active, w)
	if _, live := s.sites.Get(ghost); !live {
		return ghost, false
	}
	s.sites.StopBuilding(ghost)
	if !s.isPending(ghost) {
		s.pending = append(s.pending, ghost)
	}
	return ghost, true
}

// CancelAll stops every active job, frees its worker and clears both queues. It returns
// the ghosts that were known so the caller can remove them.
func (s *Scheduler) CancelAll() []entity.GhostID {
	var ghosts []entity.GhostID
	for _, w := range s.activeWorkers() {
		ghost := s.active[w]
		s.sites.StopBuilding(ghost)
		delete(s.active, w)
		s.workers.ForceRelease(w)
		ghosts = append(ghosts, ghost)
	}
	ghosts = append(ghosts, s.pending...)
	s.pending = nil
	sort.Slice(ghosts, func(i, j int) bool { return ghosts[i] < ghosts[j] })
	return ghosts
}

func (s *Scheduler) activeWorkers() []entity.WorkerID {
	ws := make([]entity.WorkerID, 0, len(s.active))
	for w := range s.active {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	return ws
}

func (s *Scheduler) isPending(ghost entity.GhostID) bool {
	for _, g := range s.pending {
		if g == ghost {
			return true
		}
	}
	return false
}

func (s *Scheduler) isActive(ghost entity.GhostID) bool {
	for _, g := range s.active {
		if g == ghost {
			return true
		}
	}
	return false
}

func (s *Scheduler) removePending(ghost entity.GhostID) {
	for i, g := range s.pending {
		if g == ghost {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) removeActive(ghost entity.GhostID) (entity.WorkerID, bool) {
	for w, g := range s.active {
		if g == ghost {
			delete(s.active, w)
			return w, true
		}
	}
	return 0, false
}

// Pending returns a copy of the pending list in queue order.
func (s *Scheduler) Pending() []entity.GhostID {
	out := make([]entity.GhostID, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *Scheduler) ActiveJob(w entity.WorkerID) (entity.GhostID, bool) {
	g, ok := s.active[w]
	return g, ok
}

func (s *Scheduler) PendingCount() int { return len(s.pending) }

func (s *Scheduler) ActiveCount() int { return len(s.active) }

func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Pending = len(s.pending)
	st.Active = len(s.active)
	return st
}
