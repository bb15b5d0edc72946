package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestRepoTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Defaults(), got); diff != "" {
		t.Fatalf("configs/tuning.yaml drifted from Defaults (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("worker:\n  move_speed: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Worker.MoveSpeed != 4 {
		t.Fatalf("move_speed=%v want 4", got.Worker.MoveSpeed)
	}
	if got.Worker.BuildRange != Defaults().Worker.BuildRange {
		t.Fatalf("unset field lost its default: %v", got.Worker.BuildRange)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Tuning){
		"tick rate":  func(t *Tuning) { t.TickRateHz = 0 },
		"grid":       func(t *Tuning) { t.Grid.Width = 0 },
		"cell size":  func(t *Tuning) { t.Grid.CellSize = 0 },
		"interval":   func(t *Tuning) { t.Scheduler.IntervalSeconds = 0 },
		"idle range": func(t *Tuning) { t.Worker.IdleMinSeconds = 9 },
		"timeout":    func(t *Tuning) { t.Worker.JobTimeoutSeconds = 0 },
		"expansions": func(t *Tuning) { t.Planner.MaxExpansions = 0 },
		"workers":    func(t *Tuning) { t.Spawn.InitialWorkers = -1 },
	}
	for name, mut := range cases {
		tu := Defaults()
		mut(&tu)
		if err := tu.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestReloadableKeepsFixedFields(t *testing.T) {
	base := Defaults()
	next := Defaults()
	next.Grid.Width = 999
	next.Seed = 42
	next.Worker.MoveSpeed = 7
	got := next.Reloadable(base)
	if got.Grid.Width != base.Grid.Width || got.Seed != base.Seed {
		t.Fatalf("fixed fields changed: %+v", got)
	}
	if got.Worker.MoveSpeed != 7 {
		t.Fatalf("reloadable field not applied: %v", got.Worker.MoveSpeed)
	}
}

func TestWatchDeliversReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Tuning, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, 20*time.Millisecond, nil, func(t Tuning) { got <- t })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tu := <-got:
			if tu.Worker.MoveSpeed != 3 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			// Rewrite until the watcher is registered and reports the change.
			if err := os.WriteFile(p, []byte("worker:\n  move_speed: 3\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("no reload observed")
		}
	}
}
