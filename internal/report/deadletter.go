package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// DeadLetterSource is the slice of the store the exporter reads.
type DeadLetterSource interface {
	DeadEnvelopes(ctx context.Context) ([]*eventbus.Envelope, error)
}

// Exporter writes quarantined envelopes into an Excel workbook so they
// can be inspected away from the database.
type Exporter struct {
	source DeadLetterSource
	logger *zerolog.Logger
}

func NewExporter(source DeadLetterSource, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

var deadLetterColumns = []string{
	"ID", "Aggregate ID", "Aggregate Type", "Event Type",
	"Attempts", "Created Seq", "Created At", "Last Attempt At", "Payload",
}

// Export writes all dead envelopes to path and returns how many rows
// were written.
func (e *Exporter) Export(ctx context.Context, path string) (int, error) {
	envelopes, err := e.source.DeadEnvelopes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load dead envelopes: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Dead letters"
	file.SetSheetName("Sheet1", sheet)

	for i, col := range deadLetterColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return 0, err
		}
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return 0, err
		}
	}

	// Apply bold style to header
	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(deadLetterColumns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, envelope := range envelopes {
		row := []interface{}{
			envelope.ID,
			envelope.AggregateID,
			envelope.AggregateType,
			envelope.EventType,
			envelope.AttemptCount,
			envelope.CreatedSeq,
			envelope.CreatedAt.Format(time.RFC3339),
			envelope.UpdatedAt.Format(time.RFC3339),
			string(envelope.EventData),
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return 0, err
			}
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				return 0, err
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	e.logger.Info().Int("rows", len(envelopes)).Str("path", path).Msg("Dead letter report written")
	return len(envelopes), nil
}
