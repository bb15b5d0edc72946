// Package workers implements the worker state machine.
//
// Each state has its own transition function. Step dispatches to it once per tick and
// stores the returned state. All effects on the rest of the simulation go through Env,
// so each transition can be driven in isolation with a stub.
package workers

import (
	"math"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/tuning"
)

type State uint8

const (
	Idle State = iota
	MovingIdle
	MovingToJob
	Working
)

func (s State) String() string {
	switch s {
	case MovingIdle:
		return "MOVING_IDLE"
	case MovingToJob:
		return "MOVING_TO_JOB"
	case Working:
		return "WORKING"
	}
	return "IDLE"
}

type Worker struct {
	ID    entity.WorkerID
	Pos   grid.Vec2
	Spawn grid.Vec2
	State State

	Route  []grid.Vec2
	Cursor int

	Job      entity.GhostID
	JobStart float64
	// IdleTimer counts down while Idle.
	IdleTimer float64
}

func (w *Worker) HasRoute() bool { return w.Cursor < len(w.Route) }

func (w *Worker) setRoute(r []grid.Vec2) {
	w.Route = r
	w.Cursor = 0
}

func (w *Worker) clearRoute() {
	w.Route = nil
	w.Cursor = 0
}

// AssignJob is the scheduler's entry point: w starts walking to ghost along route.
func (w *Worker) AssignJob(ghost entity.GhostID, now float64, route []grid.Vec2) {
	w.Job = ghost
	w.JobStart = now
	w.State = MovingToJob
	w.setRoute(route)
}

// ClearJob drops the job and returns w to Idle with a fresh idle timer.
func (w *Worker) ClearJob(idleTimer float64) {
	w.Job = 0
	w.JobStart = 0
	w.State = Idle
	w.clearRoute()
	w.IdleTimer = idleTimer
}

// Config holds worker parameters in world units and seconds.
type Config struct {
	MoveSpeed       float64
	BuildRange      float64
	ArrivalRadius   float64
	AvoidanceRadius float64
	AvoidanceForce  float64
	AvoidanceWeight float64
	MinSeparation   float64
	IdleMin         float64
	IdleMax         float64
	WanderRadius    float64
	JobTimeout      float64
}

// ConfigFrom scales the cell-based tuning values by cellSize.
func ConfigFrom(t tuning.Worker, cellSize float64) Config {
	return Config{
		MoveSpeed:       t.MoveSpeed * cellSize,
		BuildRange:      t.BuildRange * cellSize,
		ArrivalRadius:   t.ArrivalRadius * cellSize,
		AvoidanceRadius: t.AvoidanceRadius * cellSize,
		AvoidanceForce:  t.AvoidanceForce,
		AvoidanceWeight: t.AvoidanceWeight,
		MinSeparation:   0.1 * cellSize,
		IdleMin:         t.IdleMinSeconds,
		IdleMax:         t.IdleMaxSeconds,
		WanderRadius:    t.WanderRadius * cellSize,
		JobTimeout:      t.JobTimeoutSeconds,
	}
}

// IdleDuration maps u in [0,1) onto the configured idle range.
func (c Config) IdleDuration(u float64) float64 {
	return c.IdleMin + u*(c.IdleMax-c.IdleMin)
}

// Env is everything a worker may observe or affect outside itself.
type Env interface {
	// Route plans from one world position to another. A result of length one or less
	// means no progress is possible.
	Route(from, to grid.Vec2) []grid.Vec2
	// Snap clamps p to the centre of the nearest in-bounds cell.
	Snap(p grid.Vec2) grid.Vec2
	// Float64 draws from the simulation's seeded RNG.
	Float64() float64

	JobSite(ghost entity.GhostID) (grid.Vec2, bool)
	WorkPosition(ghost entity.GhostID, self entity.WorkerID) (grid.Vec2, bool)
	StartBuilding(ghost entity.GhostID, self entity.WorkerID, pos grid.Vec2) error
	ContinueBuilding(ghost entity.GhostID, dt float64) (bool, error)
	StopBuilding(ghost entity.GhostID)

	WorkerFinishedJob(self entity.WorkerID)
	WorkerTimedOutOnJob(self entity.WorkerID)

	// Neighbors lists the positions of other workers within radius of p.
	Neighbors(self entity.WorkerID, p grid.Vec2, radius float64) []grid.Vec2
}

// Step runs one tick of w's state machine and returns the new state.
func Step(w *Worker, env Env, cfg Config, dt, now float64) State {
	var next State
	switch w.State {
	case Idle:
		next = stepIdle(w, env, cfg, dt)
	case MovingIdle:
		next = stepMovingIdle(w, env, cfg, dt)
	case MovingToJob:
		next = stepMovingToJob(w, env, cfg, dt, now)
	case Working:
		next = stepWorking(w, env, cfg, dt)
	}
	w.State = next
	return next
}

func stepIdle(w *Worker, env Env, cfg Config, dt float64) State {
	w.IdleTimer -= dt
	if w.IdleTimer > 0 {
		return Idle
	}
	r := cfg.WanderRadius * math.Sqrt(env.Float64())
	theta := 2 * math.Pi * env.Float64()
	target := env.Snap(w.Spawn.Add(grid.Vec2{X: r * math.Cos(theta), Y: r * math.Sin(theta)}))
	w.IdleTimer = cfg.IdleDuration(env.Float64())

	route := env.Route(w.Pos, target)
	if len(route) <= 1 {
		return Idle
	}
	w.setRoute(route)
	return MovingIdle
}

func stepMovingIdle(w *Worker, env Env, cfg Config, dt float64) State {
	follow(w, env, cfg, dt)
	if w.HasRoute() {
		return MovingIdle
	}
	w.clearRoute()
	w.IdleTimer = cfg.IdleDuration(env.Float64())
	return Idle
}

func stepMovingToJob(w *Worker, env Env, cfg Config, dt, now float64) State {
	site, ok := env.JobSite(w.Job)
	if !ok {
		w.ClearJob(cfg.IdleDuration(env.Float64()))
		return Idle
	}
	if now-w.JobStart > cfg.JobTimeout {
		env.WorkerTimedOutOnJob(w.ID)
		w.ClearJob(cfg.IdleDuration(env.Float64()))
		return Idle
	}

	follow(w, env, cfg, dt)
	if w.HasRoute() {
		return MovingToJob
	}

	if w.Pos.Dist(site) <= cfg.BuildRange {
		if err := env.StartBuilding(w.Job, w.ID, w.Pos); err != nil {
			env.WorkerFinishedJob(w.ID)
			w.ClearJob(cfg.IdleDuration(env.Float64()))
			return Idle
		}
		w.clearRoute()
		return Working
	}
	if wp, ok := env.WorkPosition(w.Job, w.ID); ok {
		w.setRoute(env.Route(w.Pos, wp))
	}
	return MovingToJob
}

func stepWorking(w *Worker, env Env, cfg Config, dt float64) State {
	site, ok := env.JobSite(w.Job)
	if !ok {
		w.ClearJob(cfg.IdleDuration(env.Float64()))
		return Idle
	}
	if w.Pos.Dist(site) > cfg.BuildRange {
		env.StopBuilding(w.Job)
		if wp, ok := env.WorkPosition(w.Job, w.ID); ok {
			w.setRoute(env.Route(w.Pos, wp))
		}
		return MovingToJob
	}
	done, err := env.ContinueBuilding(w.Job, dt)
	if err != nil {
		env.WorkerFinishedJob(w.ID)
		w.ClearJob(cfg.IdleDuration(env.Float64()))
		return Idle
	}
	if done {
		// Completion already released w through the construction hooks.
		return w.State
	}
	return Working
}

// follow advances along the route: waypoints within the arrival radius are consumed,
// then w moves toward the next one, nudged away from nearby workers.
func follow(w *Worker, env Env, cfg Config, dt float64) {
	for w.HasRoute() && w.Pos.Dist(w.Route[w.Cursor]) <= cfg.ArrivalRadius {
		w.Cursor++
	}
	if !w.HasRoute() || dt <= 0 {
		return
	}
	wp := w.Route[w.Cursor]
	dir := wp.Sub(w.Pos).Normalized()
	avoid := repulsion(w, env, cfg)
	heading := dir.Add(avoid.Scale(cfg.AvoidanceWeight)).Normalized()
	step := math.Min(cfg.MoveSpeed*dt, w.Pos.Dist(wp))
	w.Pos = w.Pos.Add(heading.Scale(step))
}

// repulsion sums inverse-square pushes away from workers inside the avoidance radius.
func repulsion(w *Worker, env Env, cfg Config) grid.Vec2 {
	if cfg.AvoidanceRadius <= 0 || cfg.AvoidanceForce <= 0 {
		return grid.Vec2{}
	}
	var sum grid.Vec2
	for _, o := range env.Neighbors(w.ID, w.Pos, cfg.AvoidanceRadius) {
		away := w.Pos.Sub(o)
		d := away.Len()
		if d <= cfg.MinSeparation {
			continue
		}
		sum = sum.Add(away.Normalized().Scale(cfg.AvoidanceForce / (d * d)))
	}
	return sum
}
