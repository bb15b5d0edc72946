package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"buildcraft.ai/internal/persistence/indexdb"
	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/world"
)

// openRuntimeIndex opens the SQLite read model under worldDir unless disabled by flag or
// BC_INDEX_BACKEND=none. It returns nil, nil when indexing is off.
func openRuntimeIndex(ctx context.Context, worldDir string, disableDB bool, runID string, cat *catalogs.Catalog, tune tuning.Tuning, log *zap.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported BC_INDEX_BACKEND: %s", backend)
	}

	// One index per run: the tick numbering restarts with every run.
	idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", runID+".sqlite"), log)
	if err != nil {
		return nil, err
	}
	if err := idx.UpsertCatalog(ctx, cat, tune); err != nil {
		log.Warn("index: upsert catalog", zap.Error(err))
	}
	if err := idx.SetMeta(ctx, "run_id", runID); err != nil {
		log.Warn("index: set meta", zap.Error(err))
	}
	return idx, nil
}

func indexTicks(idx *indexdb.SQLiteIndex) world.TickLogger {
	if idx == nil {
		return nil
	}
	return idx
}

func indexAudits(idx *indexdb.SQLiteIndex) world.AuditLogger {
	if idx == nil {
		return nil
	}
	return idx
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return err
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return err
}
