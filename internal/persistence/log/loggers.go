package log

import (
	"path/filepath"

	"buildcraft.ai/internal/sim/world"
)

const (
	ticksDir    = "ticks"
	ticksPrefix = "ticks"
	auditDir    = "audit"
	auditPrefix = "audit"
)

// TickLogger writes one JSONL entry per tick (compressed). A run directory holds exactly
// one run, starting at tick 0, so it can be replayed.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(runDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, ticksDir), ticksPrefix)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes audit JSONL entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(runDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, auditDir), auditPrefix)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// ReadTicks returns every tick entry recorded in runDir, oldest first.
func ReadTicks(runDir string) ([]world.TickLogEntry, error) {
	return ReadAll[world.TickLogEntry](filepath.Join(runDir, ticksDir), ticksPrefix)
}

// ReadAudits returns every audit entry recorded in runDir, oldest first.
func ReadAudits(runDir string) ([]world.AuditEntry, error) {
	return ReadAll[world.AuditEntry](filepath.Join(runDir, auditDir), auditPrefix)
}
