package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

const dateLayout = "2006-01-02"

// Store is the read side of the record store the weekly report needs.
type Store interface {
	ActiveBatches(ctx context.Context) ([]models.Batch, error)
	ReportsSince(ctx context.Context, since time.Time) ([]models.Report, error)
}

// Service builds the weekly farm summary sent to the manager.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

type weekTotals struct {
	reports int
	deaths  int
	feedKg  float64
}

// GenerateWeeklyReport summarizes the last seven days per active batch.
func (s *Service) GenerateWeeklyReport(ctx context.Context, now time.Time) (string, error) {
	start := now.AddDate(0, 0, -7)

	batches, err := s.store.ActiveBatches(ctx)
	if err != nil {
		return "", fmt.Errorf("load active batches: %w", err)
	}
	reports, err := s.store.ReportsSince(ctx, start)
	if err != nil {
		return "", fmt.Errorf("load weekly reports: %w", err)
	}

	totals := make(map[string]*weekTotals, len(batches))
	for _, b := range batches {
		totals[b.ID] = &weekTotals{}
	}
	for _, r := range reports {
		t, ok := totals[r.BatchID]
		if !ok {
			continue
		}
		fields := normalize.Normalize(r.ReportType, r.Fields)
		t.reports++
		t.deaths += fields.Int(normalize.DeathCount)
		t.feedKg += fields.Number(normalize.FeedAmount)
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].Name < batches[j].Name })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weekly report (%s to %s)", start.Format(dateLayout), now.Format(dateLayout))
	if len(batches) == 0 {
		sb.WriteString("\nNo active batches.")
		return sb.String(), nil
	}

	for _, b := range batches {
		t := totals[b.ID]
		fmt.Fprintf(&sb, "\n\n%s, day %d", b.Name, b.AgeInDays(now))
		fmt.Fprintf(&sb, "\nBirds %d of %d, mortality %.2f%% (%d this week)", b.RemainingBirds, b.BirdCount, b.MortalityRate, t.deaths)
		fmt.Fprintf(&sb, "\nFeed %.2f kg this week, FCR %.2f", t.feedKg, b.FeedEfficiency)
		fmt.Fprintf(&sb, "\nHealth %s (%d), %d report(s)", b.HealthStatus, b.HealthScore, t.reports)
		if t.reports == 0 {
			s.logger.Debug("batch without reports this week", zap.String("batch_id", b.ID))
		}
	}

	return sb.String(), nil
}
