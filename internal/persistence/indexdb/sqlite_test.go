package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropAuditTotal != 2 {
		t.Fatalf("DropAuditTotal=%d want=2", st.DropAuditTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(world.TickLogEntry{}); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("Stats=%+v", st)
	}
}

func TestSQLiteIndex_JobStats(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpsertCatalog(ctx, catalogs.Default(), tuning.Defaults()))
	require.NoError(t, s.SetMeta(ctx, "run_id", "r-1"))

	place := world.Request{Kind: world.ReqPlace, TypeID: "WALL", Cell: &grid.Cell{X: 1, Y: 2}, Actor: "s1"}
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 0, Digest: "d0", Requests: []world.Request{place, {Kind: world.ReqCancelAll}}}))
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 1, Digest: "d1"}))
	audits := []world.AuditEntry{
		{Tick: 0, Actor: "s1", Action: "PLACE", Cell: [2]int{1, 2}, TypeID: "WALL", Ghost: 1},
		{Tick: 0, Actor: "s1", Action: "PLACE_REJECTED", Cell: [2]int{1, 2}, TypeID: "WALL", Reason: "PendingExists"},
		{Tick: 1, Actor: "scheduler", Action: "JOB_COMPLETED", Cell: [2]int{1, 2}, TypeID: "WALL", Ghost: 1, Worker: 7},
		{Tick: 1, Actor: "scheduler", Action: "JOB_COMPLETED", Cell: [2]int{2, 2}, TypeID: "FLOOR", Ghost: 2, Worker: 7},
		{Tick: 1, Actor: "scheduler", Action: "JOB_COMPLETED", Cell: [2]int{3, 2}, TypeID: "FLOOR", Ghost: 3, Worker: 4},
	}
	for _, a := range audits {
		require.NoError(t, s.WriteAudit(a))
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.JobStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.Ticks)
	require.Equal(t, uint64(1), st.LastTick)
	require.Equal(t, "d1", st.LastDigest)
	require.Equal(t, int64(3), st.Completed())
	require.Equal(t, int64(1), st.Actions["PLACE"])
	require.Equal(t, map[string]int64{"WALL": 1, "FLOOR": 2}, st.CompletedByType)
	require.Equal(t, map[string]int64{"PendingExists": 1}, st.RejectedByReason)
	require.Equal(t, []WorkerCount{{Worker: 7, Completed: 2}, {Worker: 4, Completed: 1}}, st.BusiestWorkers)

	v, ok, err := s.Meta(ctx, "run_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r-1", v)
	v, ok, err = s.Meta(ctx, "schema_version")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, schemaVersion, v)

	var reqs int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE tick=0`).Scan(&reqs))
	require.Equal(t, 2, reqs)
}

func TestSQLiteIndex_WritesAfterCloseAreDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 5}))
	require.Equal(t, uint64(1), s.Stats().DropTickTotal)
}
