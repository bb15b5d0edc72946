package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"buildcraft.ai/internal/persistence/indexdb"
)

func statsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "stats <run-id>",
		Short: "Summarise a run's jobs from its SQLite index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				if len(args) == 0 {
					return fmt.Errorf("need a run id or --db")
				}
				path = filepath.Join(worldDir(), "index", args[0]+".sqlite")
			}
			if _, err := os.Stat(path); err != nil {
				return err
			}
			idx, err := indexdb.OpenSQLite(path, nil)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer idx.Close()

			st, err := idx.JobStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite index path (overrides the run id)")
	return cmd
}
