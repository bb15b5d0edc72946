package workers

import (
	"math/rand"

	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/entity"
	"buildcraft.ai/internal/sim/grid"
)

// Pool owns every worker and the RNG their idle behaviour draws from.
type Pool struct {
	workers *entity.Arena[entity.WorkerID, Worker]
	rng     *rand.Rand
	cfg     Config
	log     *zap.Logger
}

func NewPool(cfg Config, seed int64, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		workers: entity.NewArena[entity.WorkerID, Worker](),
		rng:     rand.New(rand.NewSource(seed)),
		cfg:     cfg,
		log:     log,
	}
}

func (p *Pool) Config() Config { return p.cfg }

func (p *Pool) SetConfig(cfg Config) { p.cfg = cfg }

func (p *Pool) Float64() float64 { return p.rng.Float64() }

// Spawn adds an Idle worker at pos, which also becomes its wander anchor.
func (p *Pool) Spawn(pos grid.Vec2) entity.WorkerID {
	id := p.workers.Insert(Worker{
		Pos:       pos,
		Spawn:     pos,
		State:     Idle,
		IdleTimer: p.cfg.IdleDuration(p.rng.Float64()),
	})
	w, _ := p.workers.Get(id)
	w.ID = id
	p.log.Debug("worker spawned", zap.Uint32("worker", uint32(id)), zap.Float64("x", pos.X), zap.Float64("y", pos.Y))
	return id
}

// SpawnInArea spawns at a uniformly random point of the size.X by size.Y rectangle
// centred on centre.
func (p *Pool) SpawnInArea(centre, size grid.Vec2) entity.WorkerID {
	pos := grid.Vec2{
		X: centre.X + (p.rng.Float64()-0.5)*size.X,
		Y: centre.Y + (p.rng.Float64()-0.5)*size.Y,
	}
	return p.Spawn(pos)
}

func (p *Pool) Get(id entity.WorkerID) (*Worker, bool) { return p.workers.Get(id) }

func (p *Pool) Len() int { return p.workers.Len() }

// Each visits workers in handle order.
func (p *Pool) Each(fn func(w *Worker)) {
	p.workers.Each(func(_ entity.WorkerID, w *Worker) { fn(w) })
}

func (p *Pool) IDs() []entity.WorkerID { return p.workers.IDs() }

// Idle lists workers that may take a job, in handle order.
func (p *Pool) Idle() []*Worker {
	var out []*Worker
	p.Each(func(w *Worker) {
		if w.State == Idle && w.Job == 0 {
			out = append(out, w)
		}
	})
	return out
}

// Assign hands ghost to an Idle worker.
func (p *Pool) Assign(id entity.WorkerID, ghost entity.GhostID, now float64, route []grid.Vec2) bool {
	w, ok := p.workers.Get(id)
	if !ok || w.State != Idle {
		return false
	}
	w.AssignJob(ghost, now, route)
	return true
}

// Release returns a worker to Idle once its job is finished or taken away.
// Releasing an already idle, jobless worker is a no-op.
func (p *Pool) Release(id entity.WorkerID) {
	w, ok := p.workers.Get(id)
	if !ok {
		return
	}
	if w.State == Idle && w.Job == 0 {
		return
	}
	w.ClearJob(p.cfg.IdleDuration(p.rng.Float64()))
}

// Nearby lists positions of workers other than self within radius of pos.
func (p *Pool) Nearby(self entity.WorkerID, pos grid.Vec2, radius float64) []grid.Vec2 {
	var out []grid.Vec2
	p.Each(func(w *Worker) {
		if w.ID != self && w.Pos.Dist(pos) <= radius {
			out = append(out, w.Pos)
		}
	})
	return out
}

type Counts struct {
	Idle        int `json:"idle"`
	MovingIdle  int `json:"moving_idle"`
	MovingToJob int `json:"moving_to_job"`
	Working     int `json:"working"`
}

func (p *Pool) Counts() Counts {
	var c Counts
	p.Each(func(w *Worker) {
		switch w.State {
		case Idle:
			c.Idle++
		case MovingIdle:
			c.MovingIdle++
		case MovingToJob:
			c.MovingToJob++
		case Working:
			c.Working++
		}
	})
	return c
}
