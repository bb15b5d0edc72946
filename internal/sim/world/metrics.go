package world

import (
	"time"

	"buildcraft.ai/internal/sim/construction"
	"buildcraft.ai/internal/sim/jobs"
	"buildcraft.ai/internal/sim/occupancy"
	"buildcraft.ai/internal/sim/workers"
)

// Metrics is a snapshot published at the end of every tick. Safe from any goroutine.
type Metrics struct {
	Tick      uint64             `json:"tick"`
	StepMS    float64            `json:"step_ms"`
	Workers   workers.Counts     `json:"workers"`
	Cells     occupancy.Counts   `json:"cells"`
	Jobs      jobs.Stats         `json:"jobs"`
	Sites     construction.Stats `json:"sites"`
	Observers int                `json:"observers"`

	InboxDepth int `json:"inbox_depth"`
}

func (w *World) Metrics() Metrics {
	var m Metrics
	if p := w.metrics.Load(); p != nil {
		m = *p
	}
	m.InboxDepth = len(w.inbox)
	return m
}

func (w *World) publishMetrics(started time.Time) {
	w.metrics.Store(&Metrics{
		Tick:      w.tick.Load(),
		StepMS:    float64(time.Since(started).Microseconds()) / 1000,
		Workers:   w.pool.Counts(),
		Cells:     w.occ.Counts(),
		Jobs:      w.sched.Stats(),
		Sites:     w.sites.Stats(),
		Observers: len(w.observers),
	})
}
