package world

import (
	"time"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/workers"
)

// step advances one tick. Order within a tick:
//  1. placement requests, so occupancy changes are visible to everything after them;
//  2. workers already Working continue their construction;
//  3. the scheduler's rate-limited assignment pass;
//  4. every other worker, so fresh assignments start moving this tick.
func (w *World) step(reqs []Request) {
	started := time.Now()
	tick := w.tick.Load()
	w.now = float64(tick) * w.dt

	var applied *tuning.Tuning
	if w.pendingTuning != nil {
		w.applyTuning(*w.pendingTuning)
		t := w.tune
		applied = &t
		w.pendingTuning = nil
	}

	recorded := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		res := w.apply(tick, r)
		reply(r.Resp, res)
		r.Resp = nil
		recorded = append(recorded, r)
	}

	cfg := w.pool.Config()
	building := map[entity.WorkerID]bool{}
	w.pool.Each(func(wk *workers.Worker) {
		if wk.State == workers.Working {
			building[wk.ID] = true
			workers.Step(wk, w.env, cfg, w.dt, w.now)
		}
	})

	w.sched.Tick(w.dt)

	w.pool.Each(func(wk *workers.Worker) {
		if !building[wk.ID] {
			workers.Step(wk, w.env, cfg, w.dt, w.now)
		}
	})

	w.tick.Store(tick + 1)

	w.flushAudits()
	if w.tickLogger != nil {
		entry := TickLogEntry{Tick: tick, Requests: recorded, Tuning: applied, Digest: w.Digest()}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn("tick log write failed", zap.Uint64("tick", tick), zap.Error(err))
		}
	}
	w.publishFrames(tick)
	w.publishMetrics(started)
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(reqs []Request) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(reqs)
	return tick, w.Digest()
}
