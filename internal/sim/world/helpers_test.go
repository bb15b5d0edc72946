package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/construction"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/workers"
)

func testTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.Grid.Width, t.Grid.Height = 20, 20
	t.Spawn.InitialWorkers = 0
	return t
}

func newTestWorld(t *testing.T, tune tuning.Tuning, cat *catalogs.Catalog) *World {
	t.Helper()
	w, err := New(Config{ID: "test", Tuning: tune, StraightWalls: true}, cat, nil)
	require.NoError(t, err)
	return w
}

func cellPtr(x, y int) *grid.Cell { return &grid.Cell{X: x, Y: y} }

// do applies reqs in one tick and returns their results in order.
func do(t *testing.T, w *World, reqs ...Request) []Result {
	t.Helper()
	chans := make([]chan Result, len(reqs))
	for i := range reqs {
		chans[i] = make(chan Result, 1)
		reqs[i].Resp = chans[i]
	}
	w.StepOnce(reqs)
	out := make([]Result, len(reqs))
	for i, ch := range chans {
		select {
		case out[i] = <-ch:
		default:
			t.Fatalf("request %d got no result", i)
		}
	}
	return out
}

func spawnAt(t *testing.T, w *World, x, y int) Result {
	t.Helper()
	res := do(t, w, Request{Kind: ReqSpawnWorker, Cell: cellPtr(x, y)})[0]
	require.NoError(t, res.Err)
	return res
}

// buildNow places typeID at c and completes it immediately, without a worker.
func buildNow(t *testing.T, w *World, typeID string, c grid.Cell) {
	t.Helper()
	ghost, err := w.place(w.CurrentTick(), "test", typeID, c)
	require.NoError(t, err)
	far := grid.Cell{X: w.g.Width - 2, Y: w.g.Height - 2}
	require.NoError(t, w.sites.StartBuilding(ghost, 0, far))
	done, err := w.sites.ContinueBuilding(ghost, 1000)
	require.NoError(t, err)
	require.True(t, done)
}

// stepUntil steps until cond holds, failing after max ticks.
func stepUntil(t *testing.T, w *World, max int, cond func() bool) {
	t.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		w.StepOnce(nil)
	}
	require.True(t, cond(), "condition not reached after %d ticks", max)
}

func ghostStates(w *World) (pending, inProgress int) {
	for _, g := range w.sites.All() {
		if g.State == construction.InProgress {
			inProgress++
		} else {
			pending++
		}
	}
	return pending, inProgress
}

func worker(t *testing.T, w *World, id entity.WorkerID) *workers.Worker {
	t.Helper()
	p, ok := w.pool.Get(id)
	require.True(t, ok, "worker %d not found", id)
	return p
}

type tickRecorder struct{ entries []TickLogEntry }

func (r *tickRecorder) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

type auditRecorder struct{ entries []AuditEntry }

func (r *auditRecorder) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *auditRecorder) actions() []string {
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}
