package world

import (
	"go.uber.org/zap"

	"buildcraft.ai/internal/sim/jobs"
	"buildcraft.ai/internal/sim/tuning"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry records everything needed to replay a tick: the requests applied and any
// tuning that took effect at its start.
type TickLogEntry struct {
	Tick     uint64         `json:"tick"`
	Requests []Request      `json:"requests,omitempty"`
	Tuning   *tuning.Tuning `json:"tuning,omitempty"`
	Digest   string         `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "PLACE", "JOB_TIMED_OUT"
	Cell   [2]int `json:"cell"`
	TypeID string `json:"type_id,omitempty"`
	Ghost  uint32 `json:"ghost,omitempty"`
	Worker uint32 `json:"worker,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (w *World) audit(e AuditEntry) {
	if e.Actor == "" {
		e.Actor = "world"
	}
	w.audits = append(w.audits, e)
}

func (w *World) flushAudits() {
	if len(w.audits) == 0 {
		return
	}
	if w.auditLogger != nil {
		for _, e := range w.audits {
			if err := w.auditLogger.WriteAudit(e); err != nil {
				w.log.Warn("audit write failed", zap.String("action", e.Action), zap.Error(err))
				break
			}
		}
	}
	w.audits = w.audits[:0]
}

// onJobEvent turns scheduler events into audits.
func (w *World) onJobEvent(ev jobs.Event) {
	meta := w.ghostMeta[ev.Ghost]
	w.audit(AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  "scheduler",
		Action: string(ev.Kind),
		Cell:   cellPair(meta.cell),
		TypeID: meta.typeID,
		Ghost:  uint32(ev.Ghost),
		Worker: uint32(ev.Worker),
	})
	switch ev.Kind {
	case jobs.JobCompleted, jobs.JobCancelled:
		delete(w.ghostMeta, ev.Ghost)
	}
}
