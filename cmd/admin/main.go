// Command admin inspects recorded runs: their journals, their SQLite index and a live
// server's state.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	persistlog "buildcraft.ai/internal/persistence/log"
)

var (
	dataDir string
	worldID string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect buildcraft runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&worldID, "world", "world_1", "world id")

	root.AddCommand(runsCmd(), statsCmd(), auditsCmd(), replayCmd(), stateCmd())
	return root
}

func worldDir() string { return filepath.Join(dataDir, "worlds", worldID) }

func runDir(runID string) string { return filepath.Join(worldDir(), "runs", runID) }

func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ents, err := os.ReadDir(filepath.Join(worldDir(), "runs"))
			if err != nil {
				return err
			}
			var ms []persistlog.RunManifest
			for _, e := range ents {
				if !e.IsDir() {
					continue
				}
				m, err := persistlog.ReadManifest(runDir(e.Name()))
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Name(), err)
					continue
				}
				ms = append(ms, m)
			}
			sort.Slice(ms, func(i, j int) bool { return ms[i].StartedAt.Before(ms[j].StartedAt) })
			for _, m := range ms {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tseed=%d\t%dx%d\n",
					m.RunID, m.StartedAt.Format(time.RFC3339), m.Tuning.Seed, m.Tuning.Grid.Width, m.Tuning.Grid.Height)
			}
			return nil
		},
	}
}

func auditsCmd() *cobra.Command {
	var action string
	var limit int
	cmd := &cobra.Command{
		Use:   "audits <run-id>",
		Short: "Print a run's audit journal as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := persistlog.ReadAudits(runDir(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for _, e := range entries {
				if action != "" && !strings.EqualFold(e.Action, action) {
					continue
				}
				if limit > 0 && n >= limit {
					break
				}
				if err := enc.Encode(e); err != nil {
					return err
				}
				n++
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "only this action, e.g. JOB_TIMED_OUT")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many entries (0 = all)")
	return cmd
}

func stateCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch a running server's state",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/state"
			cl := &http.Client{Timeout: 5 * time.Second}
			resp, err := cl.Get(u)
			if err != nil {
				return fmt.Errorf("request: %w", err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("server answered %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	return cmd
}
