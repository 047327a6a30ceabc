package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k-egor-smirnov/lift/internal/database"
	"github.com/k-egor-smirnov/lift/internal/report"
)

// NewExportCommand creates the export-deadletters command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-deadletters",
		Short: "Export quarantined events to an Excel file",
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

			exporter := report.NewExporter(db, &logger)
			rows, err := exporter.Export(cmd.Context(), output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d dead letters to %s\n", rows, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "deadletters.xlsx", "output file path")
	return cmd
}
