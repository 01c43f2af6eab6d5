package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Aggregator is the part of the aggregation service field commands drive.
type Aggregator interface {
	SubmitReport(ctx context.Context, sub aggregation.Submission) (aggregation.Result, error)
	GetBatch(ctx context.Context, id string) (models.Batch, error)
}

// Dispatcher executes parsed commands and replies with the updated batch figures.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	aggregator Aggregator
	logger     *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(aggregator Aggregator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		aggregator: aggregator,
		logger:     logger,
	}
}

// HandleCommand turns the command into a report submission, or a batch lookup
// for /status, and formats the reply.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Any("args", cmd.Args))

	if cmd.Type == models.CommandStatus {
		if len(cmd.Args) == 0 {
			return "", ErrInvalidArguments
		}
		batch, err := s.aggregator.GetBatch(ctx, cmd.Args[0])
		if err != nil {
			return "", err
		}
		return statusMessage(batch), nil
	}

	var (
		sub aggregation.Submission
		err error
	)
	switch cmd.Type {
	case models.CommandMortality:
		sub, err = buildMortality(cmd)
	case models.CommandFeed:
		sub, err = buildFeed(cmd)
	case models.CommandVaccination:
		sub, err = buildVaccination(cmd)
	case models.CommandHealth:
		sub, err = buildHealth(cmd)
	default:
		return "", ErrUnsupportedCommand
	}
	if err != nil {
		return "", err
	}
	sub.Meta.SubmittedBy = sender

	res, err := s.aggregator.SubmitReport(ctx, sub)
	if err != nil {
		return "", err
	}

	b := res.Batch
	switch cmd.Type {
	case models.CommandMortality:
		return fmt.Sprintf("Mortality logged for %s: %s birds. Total %d, remaining %d, rate %.2f%%. Health %s (%d).",
			b.Name, cmd.Args[1], b.TotalMortality, b.RemainingBirds, b.MortalityRate, b.HealthStatus, b.HealthScore), nil
	case models.CommandFeed:
		return fmt.Sprintf("Feed usage saved for %s: %s kg. Total %.2f kg, FCR %.2f.",
			b.Name, cmd.Args[1], b.FeedUsed, b.FeedEfficiency), nil
	case models.CommandVaccination:
		return fmt.Sprintf("Vaccination logged for %s. %d vaccination(s) so far. Health %s (%d).",
			b.Name, b.Vaccinations, b.HealthStatus, b.HealthScore), nil
	default:
		return fmt.Sprintf("Daily check saved for %s. Health %s (%d).", b.Name, b.HealthStatus, b.HealthScore), nil
	}
}

// buildMortality parses "/mortality <batch> <count> [cause...]".
func buildMortality(cmd models.Command) (aggregation.Submission, error) {
	if len(cmd.Args) < 2 {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	count, ok := parseCount(cmd.Args[1])
	if !ok {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	fields := map[string]any{"deathCount": count}
	if len(cmd.Args) > 2 {
		fields["cause"] = strings.Join(cmd.Args[2:], " ")
	}

	return aggregation.Submission{BatchID: cmd.Args[0], ReportType: models.ReportMortality, Fields: fields}, nil
}

// buildFeed parses "/feed <batch> <kg> [avgWeightKg]".
func buildFeed(cmd models.Command) (aggregation.Submission, error) {
	if len(cmd.Args) < 2 {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	feedKg, ok := parseAmount(cmd.Args[1])
	if !ok {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	fields := map[string]any{"feedAmount": feedKg}
	if len(cmd.Args) > 2 {
		weight, ok := parseAmount(cmd.Args[2])
		if !ok {
			return aggregation.Submission{}, ErrInvalidArguments
		}
		fields["averageWeight"] = weight
	}

	return aggregation.Submission{BatchID: cmd.Args[0], ReportType: models.ReportFeed, Fields: fields}, nil
}

// buildVaccination parses "/vaccination <batch> <count> [vaccine...]".
func buildVaccination(cmd models.Command) (aggregation.Submission, error) {
	if len(cmd.Args) < 2 {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	count, ok := parseCount(cmd.Args[1])
	if !ok {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	fields := map[string]any{"vaccinationCount": count}
	if len(cmd.Args) > 2 {
		fields["vaccine"] = strings.Join(cmd.Args[2:], " ")
	}

	return aggregation.Submission{BatchID: cmd.Args[0], ReportType: models.ReportVaccination, Fields: fields}, nil
}

func parseCount(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n > aggregation.MaxQuantity {
		return 0, false
	}
	return n, true
}

// parseAmount accepts finite non-negative decimals only; ParseFloat alone
// would let "NaN" and "Inf" through.
func parseAmount(arg string) (float64, bool) {
	n, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n > aggregation.MaxQuantity {
		return 0, false
	}
	return n, true
}

// buildHealth parses "/health <batch> <Excellent|Good|Fair|Poor>" into a daily report.
func buildHealth(cmd models.Command) (aggregation.Submission, error) {
	if len(cmd.Args) < 2 {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	var label models.HealthStatus
	for _, status := range []models.HealthStatus{models.HealthExcellent, models.HealthGood, models.HealthFair, models.HealthPoor} {
		if strings.EqualFold(cmd.Args[1], string(status)) {
			label = status
		}
	}
	if label == "" {
		return aggregation.Submission{}, ErrInvalidArguments
	}

	sub := aggregation.Submission{
		BatchID:    cmd.Args[0],
		ReportType: models.ReportDaily,
		Fields:     map[string]any{"overallHealth": string(label)},
	}
	if label == models.HealthPoor {
		sub.Meta.UrgencyLevel = models.UrgencyHigh
	}
	return sub, nil
}

func statusMessage(b models.Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", b.Name, b.Status)
	fmt.Fprintf(&sb, "Birds: %d of %d (mortality %.2f%%)\n", b.RemainingBirds, b.BirdCount, b.MortalityRate)
	fmt.Fprintf(&sb, "Health: %s (%d)\n", b.HealthStatus, b.HealthScore)
	fmt.Fprintf(&sb, "Feed: %.2f kg, FCR %.2f\n", b.FeedUsed, b.FeedEfficiency)
	fmt.Fprintf(&sb, "Vaccinations: %d", b.Vaccinations)
	return sb.String()
}
