package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const (
	// ReportsRange is where journal rows are appended.
	ReportsRange = "Reports!A:I"
	headerRange  = "Reports!A1:I1"
)

var header = []interface{}{
	"Date", "Batch", "Type", "Urgency", "Submitted by", "Fields",
	"Total mortality", "Mortality rate %", "Health score",
}

// Journal mirrors accepted reports into a spreadsheet for farm staff.
type Journal struct {
	repo       Repository
	sheetRange string
}

func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo, sheetRange: ReportsRange}
}

// EnsureHeader writes the column titles when the journal sheet is empty.
func (j *Journal) EnsureHeader(ctx context.Context) error {
	rows, err := j.repo.ReadRange(ctx, headerRange)
	if err != nil {
		return fmt.Errorf("check journal header: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	if err := j.repo.WriteRow(ctx, j.sheetRange, header); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	return nil
}

// AppendReport writes one row: date, batch, type, urgency, submitter, the raw
// fields and the batch totals right after the report was applied.
func (j *Journal) AppendReport(ctx context.Context, batch models.Batch, report models.Report) error {
	fields, err := json.Marshal(report.Fields)
	if err != nil {
		return fmt.Errorf("encode report fields: %w", err)
	}

	row := []interface{}{
		report.CreatedAt.Format(time.RFC3339),
		batch.Name,
		string(report.ReportType),
		string(report.UrgencyLevel),
		report.SubmittedBy,
		string(fields),
		batch.TotalMortality,
		batch.MortalityRate,
		batch.HealthScore,
	}

	if err := j.repo.WriteRow(ctx, j.sheetRange, row); err != nil {
		return fmt.Errorf("journal report %s: %w", report.ID, err)
	}
	return nil
}
