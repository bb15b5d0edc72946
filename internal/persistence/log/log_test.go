package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/grid"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/world"
)

func TestTickJournalRoundTripAcrossHours(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	tune := tuning.Defaults()
	want := []world.TickLogEntry{
		{Tick: 0, Digest: "a", Tuning: &tune},
		{Tick: 1, Digest: "b", Requests: []world.Request{{Kind: world.ReqPlace, TypeID: "WALL", Cell: &grid.Cell{X: 3, Y: 4}, Actor: "s1"}}},
		{Tick: 2, Digest: "c", Requests: []world.Request{{Kind: world.ReqCancelAll}}},
	}
	for i, e := range want {
		if i == 2 {
			clock = clock.Add(2 * time.Minute)
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick(%d): %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(filepath.Join(dir, ticksDir), ticksPrefix)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}

	got, err := ReadTicks(dir)
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if diff := cmp.Diff(want, got, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Resp"
	}, cmp.Ignore())); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAuditJournalAppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		l := NewAuditLogger(dir)
		l.w.now = func() time.Time { return clock }
		if err := l.WriteAudit(world.AuditEntry{Tick: uint64(i), Actor: "s1", Action: "PLACE", Cell: [2]int{i, i}}); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	got, err := ReadAudits(dir)
	if err != nil {
		t.Fatalf("ReadAudits: %v", err)
	}
	if len(got) != 2 || got[0].Tick != 0 || got[1].Cell != [2]int{1, 1} {
		t.Fatalf("got %+v", got)
	}
}

func TestReadAllEmptyDir(t *testing.T) {
	got, err := ReadTicks(t.TempDir())
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries from an empty run", len(got))
	}
}

func TestReadAllRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	tickDir := filepath.Join(dir, ticksDir)
	if err := os.MkdirAll(tickDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tickDir, "ticks-2026-03-01-10"+fileSuffix), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTicks(dir); err == nil {
		t.Fatalf("expected an error for a corrupt journal")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := world.Config{ID: "w1", Tuning: tuning.Defaults(), StraightWalls: true}
	m, err := NewRunManifest("run-1", cfg, catalogs.Default(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewRunManifest: %v", err)
	}
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if diff := cmp.Diff(cfg, got.WorldConfig()); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	cat, err := got.BuildingCatalog()
	if err != nil {
		t.Fatalf("BuildingCatalog: %v", err)
	}
	if diff := cmp.Diff(catalogs.Default().IDs(), cat.IDs()); diff != "" {
		t.Fatalf("catalog mismatch:\n%s", diff)
	}
	if got.RunID != "run-1" || got.CatalogDigest != catalogs.Default().Digest {
		t.Fatalf("got %+v", got)
	}
}
