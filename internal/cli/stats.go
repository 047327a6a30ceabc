package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k-egor-smirnov/lift/internal/database"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show envelope counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(rootOpts.Verbose)

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.NewDB(cfg.Database.Path, &logger)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			bus := buildBus(cfg, db, nil, &logger)
			stats, err := bus.GetProcessingStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "Total:      %d\n", stats.TotalEvents)
			fmt.Fprintf(out, "Pending:    %d\n", stats.PendingEvents)
			fmt.Fprintf(out, "Processing: %d\n", stats.ProcessingEvents)
			fmt.Fprintf(out, "Done:       %d\n", stats.DoneEvents)
			fmt.Fprintf(out, "Dead:       %d\n", stats.DeadLetterEvents)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
