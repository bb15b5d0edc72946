package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"buildcraft.ai/internal/persistence/indexdb"
	"buildcraft.ai/internal/sim/world"
	"buildcraft.ai/internal/transport/observer"
	"buildcraft.ai/internal/transport/ws"
)

func newMux(w *world.World, idx *indexdb.SQLiteIndex, o options, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx, o.worldID))

	// Local-only admin endpoint (does not affect simulation determinism).
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string        `json:"world_id"`
			Tick    uint64        `json:"tick"`
			Metrics world.Metrics `json:"metrics"`
			Index   indexdb.Stats `json:"index"`
		}{
			WorldID: o.worldID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
			Index:   idx.Stats(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})

	obsSrv := observer.NewServer(w, logger.Named("observer"))
	obsSrv.AllowRemote(o.remoteObserve)
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())

	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger.Named("ws")).Handler())
	return mux
}

func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex, worldID string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := w.Metrics()

		// Minimal Prometheus exposition format.
		gauge := func(name, help string) {
			fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		}
		counter := func(name, help string) {
			fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		}

		gauge("buildcraft_world_tick", "Current world tick.")
		fmt.Fprintf(rw, "buildcraft_world_tick{world=%q} %d\n", worldID, m.Tick)

		gauge("buildcraft_world_step_ms", "Last tick step duration in milliseconds.")
		fmt.Fprintf(rw, "buildcraft_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		gauge("buildcraft_world_inbox_depth", "Requests waiting for the next tick.")
		fmt.Fprintf(rw, "buildcraft_world_inbox_depth{world=%q} %d\n", worldID, m.InboxDepth)

		gauge("buildcraft_world_observers", "Connected observers.")
		fmt.Fprintf(rw, "buildcraft_world_observers{world=%q} %d\n", worldID, m.Observers)

		gauge("buildcraft_workers", "Workers by state.")
		for _, s := range []struct {
			state string
			n     int
		}{
			{"idle", m.Workers.Idle},
			{"moving_idle", m.Workers.MovingIdle},
			{"moving_to_job", m.Workers.MovingToJob},
			{"working", m.Workers.Working},
		} {
			fmt.Fprintf(rw, "buildcraft_workers{world=%q,state=%q} %d\n", worldID, s.state, s.n)
		}

		gauge("buildcraft_cells", "Occupied cells by layer.")
		fmt.Fprintf(rw, "buildcraft_cells{world=%q,layer=%q} %d\n", worldID, "floor", m.Cells.Floors)
		fmt.Fprintf(rw, "buildcraft_cells{world=%q,layer=%q} %d\n", worldID, "structure", m.Cells.Structures)
		fmt.Fprintf(rw, "buildcraft_cells{world=%q,layer=%q} %d\n", worldID, "door", m.Cells.Doors)
		fmt.Fprintf(rw, "buildcraft_cells{world=%q,layer=%q} %d\n", worldID, "pending", m.Cells.Pending)

		gauge("buildcraft_jobs", "Jobs waiting and in progress.")
		fmt.Fprintf(rw, "buildcraft_jobs{world=%q,queue=%q} %d\n", worldID, "pending", m.Jobs.Pending)
		fmt.Fprintf(rw, "buildcraft_jobs{world=%q,queue=%q} %d\n", worldID, "active", m.Jobs.Active)

		counter("buildcraft_job_events_total", "Scheduler events since start.")
		for _, e := range []struct {
			event string
			n     int
		}{
			{"assigned", m.Jobs.Assigned},
			{"completed", m.Sites.Completed},
			{"requeued", m.Jobs.Requeued},
			{"timed_out", m.Jobs.TimedOut},
			{"promoted", m.Jobs.Promoted},
			{"cancelled", m.Sites.Cancelled},
			{"trap_refused", m.Sites.TrapRisks},
		} {
			fmt.Fprintf(rw, "buildcraft_job_events_total{world=%q,event=%q} %d\n", worldID, e.event, e.n)
		}

		if idx != nil {
			st := idx.Stats()
			gauge("buildcraft_index_queue_depth", "SQLite index writer backlog.")
			fmt.Fprintf(rw, "buildcraft_index_queue_depth{world=%q} %d\n", worldID, st.QueueDepth)
			counter("buildcraft_index_dropped_total", "Entries the index dropped under load.")
			fmt.Fprintf(rw, "buildcraft_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "buildcraft_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", st.DropAuditTotal)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
