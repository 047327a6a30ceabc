package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k-egor-smirnov/lift/internal/database"
	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// NewProcessCommand creates the process command: a single processing
// pass with the full consumer set, then exit.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Run one processing pass and exit",
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

			bus := buildBus(cfg, db, newRedisClient(cfg), &logger)
			if err := subscribeHandlers(cfg, bus, db, &logger); err != nil {
				return err
			}

			err = bus.ProcessOnce(cmd.Context())
			if errors.Is(err, eventbus.ErrLockHeld) {
				fmt.Fprintln(cmd.OutOrStdout(), "Skipped: processing lock held elsewhere.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Processing pass completed.")
			return nil
		},
	}
}
