// Package world drives the construction simulation.
//
// A World owns every simulation service and is advanced by a single goroutine: Run in
// production, StepOnce in tests and replays. Other goroutines talk to it only through
// the request, observer and tuning channels.
package world

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/construction"
	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/jobs"
	"buildcraft.ai/internal/sim/occupancy"
	"buildcraft.ai/internal/sim/pathfind"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/workers"
)

type Config struct {
	ID     string
	Tuning tuning.Tuning
	// StraightWalls enables the straight_ns/straight_ew wall variants.
	StraightWalls bool
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg  Config
	tune tuning.Tuning
	cat  *catalogs.Catalog
	g    grid.Grid
	dt   float64
	now  float64
	log  *zap.Logger

	tick    atomic.Uint64
	metrics atomic.Pointer[Metrics]

	occ     *occupancy.Grid
	sites   *construction.Sites
	planner *pathfind.Planner
	pool    *workers.Pool
	sched   *jobs.Scheduler
	env     *simEnv

	// ghostMeta remembers what a ghost was so audits can describe it after it is destroyed.
	ghostMeta map[entity.GhostID]ghostMeta
	audits    []AuditEntry

	inbox         chan Request
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	tuningCh      chan tuning.Tuning
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
	doneOnce      sync.Once

	pendingTuning *tuning.Tuning
	observers     map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
}

type ghostMeta struct {
	typeID string
	cell   grid.Cell
}

// New builds every simulation service from cfg and wires them together. A nil catalog
// falls back to catalogs.Default.
func New(cfg Config, cat *catalogs.Catalog, log *zap.Logger) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cat == nil {
		cat = catalogs.Default()
	}
	t := cfg.Tuning
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	g, err := grid.New(t.Grid.Width, t.Grid.Height, t.Grid.CellSize)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	w := &World{
		cfg:           cfg,
		tune:          t,
		cat:           cat,
		g:             g,
		dt:            1 / float64(t.TickRateHz),
		log:           log,
		ghostMeta:     map[entity.GhostID]ghostMeta{},
		inbox:         make(chan Request, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		tuningCh:      make(chan tuning.Tuning, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}

	w.occ = occupancy.New(g, cfg.StraightWalls, log.Named("occupancy"))
	w.sites = construction.NewSites(w.occ, log.Named("construction"))
	w.planner = pathfind.New(w.occ, t.Planner.MaxExpansions, t.Planner.SubstituteRadius, log.Named("pathfind"))
	w.pool = workers.NewPool(workers.ConfigFrom(t.Worker, g.CellSize), t.Seed, log.Named("workers"))
	w.env = &simEnv{w: w}
	w.sched = jobs.New(schedulerConfig(t), w.sites, &jobWorkers{w: w}, w.occ, w.planner, log.Named("jobs"))

	w.sites.SetHooks(&siteHooks{w: w})
	w.occ.SetListener(&bulldozeListener{w: w})
	w.sched.SetEventSink(w.onJobEvent)

	area := grid.Vec2{X: t.Spawn.AreaWidth * g.CellSize, Y: t.Spawn.AreaHeight * g.CellSize}
	for i := 0; i < t.Spawn.InitialWorkers; i++ {
		w.pool.SpawnInArea(g.Center(), area)
	}
	log.Info("world created",
		zap.String("world", cfg.ID),
		zap.Int("width", g.Width),
		zap.Int("height", g.Height),
		zap.Int("workers", w.pool.Len()),
		zap.String("catalog_digest", cat.Digest),
	)
	return w, nil
}

func schedulerConfig(t tuning.Tuning) jobs.Config {
	return jobs.Config{IntervalSeconds: t.Scheduler.IntervalSeconds, MaxJobDistance: t.Scheduler.MaxJobDistance}
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- Request                    { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }
func (w *World) CurrentTick() uint64                      { return w.tick.Load() }
func (w *World) Config() Config                           { return w.cfg }
func (w *World) Catalog() *catalogs.Catalog               { return w.cat }
func (w *World) Bounds() grid.Grid                        { return w.g }

// SubmitTuning hands a reloaded tuning to the loop. It never blocks; when an update is
// already waiting the new one is dropped and false is returned.
func (w *World) SubmitTuning(t tuning.Tuning) bool {
	select {
	case w.tuningCh <- t:
		return true
	default:
		return false
	}
}

// QueueTuning schedules t for the next tick boundary. Loop goroutine only.
func (w *World) QueueTuning(t tuning.Tuning) { w.pendingTuning = &t }

// Tuning is the tuning currently in force. Loop goroutine only.
func (w *World) Tuning() tuning.Tuning { return w.tune }

func (w *World) applyTuning(next tuning.Tuning) {
	w.tune = next.Reloadable(w.tune)
	w.pool.SetConfig(workers.ConfigFrom(w.tune.Worker, w.g.CellSize))
	w.sched.SetConfig(schedulerConfig(w.tune))
	if w.tune.Planner.MaxExpansions > 0 {
		w.planner.MaxExpansions = w.tune.Planner.MaxExpansions
	}
	if w.tune.Planner.SubstituteRadius >= 0 {
		w.planner.SubstituteRadius = w.tune.Planner.SubstituteRadius
	}
	w.log.Info("tuning applied", zap.Uint64("tick", w.tick.Load()))
}

func (w *World) Run(ctx context.Context) error {
	defer w.doneOnce.Do(func() { close(w.done) })
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Request

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case t := <-w.tuningCh:
			w.QueueTuning(t)
		case req := <-w.inbox:
			pending = append(pending, req)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Done is closed once Run has returned. Senders that must not drop a message block on
// the world channel and on Done.
func (w *World) Done() <-chan struct{} { return w.done }
