package workers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/tuning"
)

// stubEnv routes in a straight line and records every call into the simulation.
type stubEnv struct {
	site       grid.Vec2
	siteGone   bool
	workPos    grid.Vec2
	noRoute    bool
	startErr   error
	buildLeft  float64
	rand       float64
	neighbours []grid.Vec2

	started   int
	stopped   int
	finished  int
	timedOut  int
	continued float64
}

func (e *stubEnv) Route(from, to grid.Vec2) []grid.Vec2 {
	if e.noRoute {
		return []grid.Vec2{from}
	}
	return []grid.Vec2{from, to}
}

func (e *stubEnv) Snap(p grid.Vec2) grid.Vec2 { return p }

func (e *stubEnv) Float64() float64 { return e.rand }

func (e *stubEnv) JobSite(entity.GhostID) (grid.Vec2, bool) { return e.site, !e.siteGone }

func (e *stubEnv) WorkPosition(entity.GhostID, entity.WorkerID) (grid.Vec2, bool) {
	return e.workPos, !e.siteGone
}

func (e *stubEnv) StartBuilding(entity.GhostID, entity.WorkerID, grid.Vec2) error {
	e.started++
	return e.startErr
}

func (e *stubEnv) ContinueBuilding(_ entity.GhostID, dt float64) (bool, error) {
	e.continued += dt
	return e.continued >= e.buildLeft, nil
}

func (e *stubEnv) StopBuilding(entity.GhostID) { e.stopped++ }

func (e *stubEnv) WorkerFinishedJob(entity.WorkerID) { e.finished++ }

func (e *stubEnv) WorkerTimedOutOnJob(entity.WorkerID) { e.timedOut++ }

func (e *stubEnv) Neighbors(entity.WorkerID, grid.Vec2, float64) []grid.Vec2 { return e.neighbours }

func testConfig() Config {
	return ConfigFrom(tuning.Defaults().Worker, 1)
}

func TestIdleWaitsForTimerThenWanders(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{rand: 0.5}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 5, Y: 5}, Spawn: grid.Vec2{X: 5, Y: 5}, IdleTimer: 1}

	require.Equal(t, Idle, Step(w, env, cfg, 0.5, 0))
	require.Equal(t, MovingIdle, Step(w, env, cfg, 0.6, 0.6))
	require.Len(t, w.Route, 2)
	require.InDelta(t, cfg.IdleDuration(0.5), w.IdleTimer, 1e-9, "timer re-armed")
	target := w.Route[1]
	require.LessOrEqual(t, target.Dist(w.Spawn), cfg.WanderRadius+1e-9)
}

func TestIdleStaysIdleWithoutRoute(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{rand: 0.25, noRoute: true}
	w := &Worker{ID: 1, IdleTimer: 0}
	require.Equal(t, Idle, Step(w, env, cfg, 0.1, 0))
	require.InDelta(t, cfg.IdleDuration(0.25), w.IdleTimer, 1e-9)
}

func TestMovingIdleReturnsToIdleAtRouteEnd(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{rand: 0}
	w := &Worker{ID: 1, State: MovingIdle, Route: []grid.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}}}
	for i := 0; i < 100 && w.State == MovingIdle; i++ {
		Step(w, env, cfg, 0.05, 0)
	}
	require.Equal(t, Idle, w.State)
	require.InDelta(t, 1, w.Pos.X, cfg.ArrivalRadius+1e-9)
	require.Nil(t, w.Route)
	require.Equal(t, cfg.IdleMin, w.IdleTimer)
}

func TestJobCycleToCompletion(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 3.5, Y: 0.5}, workPos: grid.Vec2{X: 2.5, Y: 0.5}, buildLeft: 1}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 0.5, Y: 0.5}}
	w.AssignJob(7, 0, []grid.Vec2{{X: 0.5, Y: 0.5}, {X: 2.5, Y: 0.5}})

	now := 0.0
	for i := 0; i < 200 && w.State == MovingToJob; i++ {
		now += 0.05
		Step(w, env, cfg, 0.05, now)
	}
	require.Equal(t, Working, w.State)
	require.Equal(t, 1, env.started)

	for i := 0; i < 200 && env.continued < env.buildLeft; i++ {
		now += 0.05
		require.Equal(t, Working, Step(w, env, cfg, 0.05, now))
	}
	require.InDelta(t, 1, env.continued, 0.06)
	// The stub does not release the worker; a vanished site does.
	env.siteGone = true
	Step(w, env, cfg, 0.05, now)
	require.Equal(t, Idle, w.State)
	require.Equal(t, entity.GhostID(0), w.Job)
}

func TestMovingToJobReroutesWhenOutOfRange(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 10.5, Y: 0.5}, workPos: grid.Vec2{X: 9.5, Y: 0.5}}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 0.5, Y: 0.5}}
	w.AssignJob(7, 0, nil)
	require.Equal(t, MovingToJob, Step(w, env, cfg, 0.05, 0.05))
	require.Equal(t, []grid.Vec2{{X: 0.5, Y: 0.5}, {X: 9.5, Y: 0.5}}, w.Route)
}

func TestStartBuildingRefusalAbandonsJob(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 1.5, Y: 0.5}, startErr: errors.New("trap")}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 0.5, Y: 0.5}}
	w.AssignJob(7, 0, nil)
	require.Equal(t, Idle, Step(w, env, cfg, 0.05, 0.05))
	require.Equal(t, 1, env.finished)
	require.Equal(t, entity.GhostID(0), w.Job)
}

func TestMovingToJobTimesOut(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 40, Y: 40}, workPos: grid.Vec2{X: 39, Y: 40}, noRoute: true}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 0.5, Y: 0.5}}
	w.AssignJob(7, 1, nil)

	require.Equal(t, MovingToJob, Step(w, env, cfg, 0.05, 1+cfg.JobTimeout))
	require.Equal(t, Idle, Step(w, env, cfg, 0.05, 1+cfg.JobTimeout+0.01))
	require.Equal(t, 1, env.timedOut)
	require.Zero(t, env.finished)
	require.Equal(t, entity.GhostID(0), w.Job)
}

func TestWorkingDriftOutOfRangeStopsBuilding(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 5, Y: 5}, workPos: grid.Vec2{X: 5, Y: 4.2}, buildLeft: 10}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 5, Y: 4.2}, State: Working, Job: 7}

	require.Equal(t, Working, Step(w, env, cfg, 0.1, 0))
	require.InDelta(t, 0.1, env.continued, 1e-9)

	w.Pos = grid.Vec2{X: 5, Y: 2}
	require.Equal(t, MovingToJob, Step(w, env, cfg, 0.1, 0))
	require.Equal(t, 1, env.stopped)
	require.True(t, w.HasRoute())
}

func TestWorkingZeroDtDoesNotProgress(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{site: grid.Vec2{X: 5, Y: 5}, buildLeft: 10}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 5, Y: 4.2}, State: Working, Job: 7}
	Step(w, env, cfg, 0, 0)
	require.Zero(t, env.continued)
}

func TestRepulsionPushesAwayFromNeighbours(t *testing.T) {
	cfg := testConfig()
	env := &stubEnv{neighbours: []grid.Vec2{{X: 0, Y: 0.2}}}
	w := &Worker{ID: 1, Pos: grid.Vec2{X: 0, Y: 0}}
	push := repulsion(w, env, cfg)
	require.Less(t, push.Y, 0.0)
	require.InDelta(t, cfg.AvoidanceForce/(0.2*0.2), push.Len(), 1e-9)

	env.neighbours = []grid.Vec2{{X: 0.05, Y: 0}}
	require.True(t, repulsion(w, env, cfg).IsZero(), "neighbours closer than the minimum separation are ignored")
}

func TestPoolAssignAndRelease(t *testing.T) {
	p := NewPool(testConfig(), 1, nil)
	a := p.Spawn(grid.Vec2{X: 1, Y: 1})
	b := p.SpawnInArea(grid.Vec2{X: 5, Y: 5}, grid.Vec2{X: 10, Y: 10})
	wb, _ := p.Get(b)
	require.InDelta(t, 5, wb.Pos.X, 5)
	require.InDelta(t, 5, wb.Pos.Y, 5)
	require.Equal(t, wb.Pos, wb.Spawn)

	require.True(t, p.Assign(a, 9, 0, nil))
	require.False(t, p.Assign(a, 10, 0, nil), "busy workers refuse")
	require.Len(t, p.Idle(), 1)
	require.Equal(t, Counts{Idle: 1, MovingToJob: 1}, p.Counts())

	p.Release(a)
	wa, _ := p.Get(a)
	require.Equal(t, Idle, wa.State)
	require.Equal(t, entity.GhostID(0), wa.Job)
	timer := wa.IdleTimer
	p.Release(a)
	require.Equal(t, timer, wa.IdleTimer, "releasing an idle worker draws nothing")

	require.Equal(t, []grid.Vec2{{X: 1, Y: 1}}, p.Nearby(b, grid.Vec2{X: 1, Y: 1.1}, 0.5))
}

func TestPoolIsDeterministicPerSeed(t *testing.T) {
	run := func() []grid.Vec2 {
		p := NewPool(testConfig(), 42, nil)
		var out []grid.Vec2
		for i := 0; i < 5; i++ {
			id := p.SpawnInArea(grid.Vec2{}, grid.Vec2{X: 10, Y: 10})
			w, _ := p.Get(id)
			out = append(out, w.Pos)
		}
		return out
	}
	require.Equal(t, run(), run())
}
