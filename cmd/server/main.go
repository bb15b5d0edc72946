// Command server runs one construction world and serves its control and observer
// websockets.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	persistlog "buildcraft.ai/internal/persistence/log"
	"buildcraft.ai/internal/sim/catalogs"
	"buildcraft.ai/internal/sim/tuning"
	"buildcraft.ai/internal/sim/world"
)

type options struct {
	addr          string
	worldID       string
	configDir     string
	tuningPath    string
	dataDir       string
	seed          int64
	straightWalls bool
	disableDB     bool
	journal       bool
	remoteObserve bool
	verbose       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run a buildcraft world",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(o.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, o, logger, cmd.Flags().Changed("seed"))
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", ":8080", "http listen address")
	f.StringVar(&o.worldID, "world", "world_1", "world id")
	f.StringVar(&o.configDir, "configs", "./configs", "config directory")
	f.StringVar(&o.tuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.StringVar(&o.dataDir, "data", "./data", "runtime data directory")
	f.Int64Var(&o.seed, "seed", 1, "worker seed (overrides tuning.yaml when set)")
	f.BoolVar(&o.straightWalls, "straight-walls", true, "use straight_ns/straight_ew wall variants")
	f.BoolVar(&o.disableDB, "disable-db", false, "disable the SQLite index")
	f.BoolVar(&o.journal, "journal", true, "write tick and audit journals")
	f.BoolVar(&o.remoteObserve, "remote-observers", false, "serve observer endpoints to non-loopback clients")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func run(ctx context.Context, o options, logger *zap.Logger, seedSet bool) error {
	cat, err := catalogs.Load(o.configDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	tp := strings.TrimSpace(o.tuningPath)
	if tp == "" {
		tp = filepath.Join(o.configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	if seedSet {
		tune.Seed = o.seed
	}

	cfg := world.Config{ID: o.worldID, Tuning: tune, StraightWalls: o.straightWalls}
	w, err := world.New(cfg, cat, logger.Named("world"))
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	runDir := filepath.Join(o.dataDir, "worlds", o.worldID, "runs", runID)
	logger = logger.With(zap.String("world", o.worldID), zap.String("run", runID))

	// Optional: read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(ctx, filepath.Join(o.dataDir, "worlds", o.worldID), o.disableDB, runID, cat, tune, logger.Named("index"))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	var ticks world.TickLogger
	var audits world.AuditLogger
	if o.journal {
		m, err := persistlog.NewRunManifest(runID, cfg, cat, time.Now())
		if err != nil {
			return err
		}
		if err := persistlog.WriteManifest(runDir, m); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		tickLog := persistlog.NewTickLogger(runDir)
		auditLog := persistlog.NewAuditLogger(runDir)
		defer tickLog.Close()
		defer auditLog.Close()
		ticks, audits = tickLog, auditLog
		logger.Info("journaling", zap.String("dir", runDir))
	}
	w.SetTickLogger(multiTickLogger{a: ticks, b: indexTicks(idx)})
	w.SetAuditLogger(multiAuditLogger{a: audits, b: indexAudits(idx)})

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           newMux(w, idx, o, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if _, err := os.Stat(filepath.Dir(tp)); err != nil {
		logger.Warn("tuning hot reload disabled", zap.String("path", tp), zap.Error(err))
	} else {
		g.Go(func() error {
			return tuning.Watch(gctx, tp, tuning.DefaultDebounce, logger.Named("tuning"), func(t tuning.Tuning) {
				if !w.SubmitTuning(t) {
					logger.Warn("tuning update dropped; previous update still pending")
				}
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", o.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped", zap.Uint64("tick", w.CurrentTick()))
	return err
}
