package aggregation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/metrics"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/domain/normalize"
)

const (
	defaultMaxAttempts = 3
	undoTimeout        = 5 * time.Second
)

// MaxQuantity bounds the counts and amounts a single report may carry.
const MaxQuantity = math.MaxInt32

// Store is the record store the applier reads and writes through.
// PersistBatch must only succeed when the stored version still equals
// batch.Version, and returns the batch as written with its version bumped.
type Store interface {
	FetchBatch(ctx context.Context, id string) (models.Batch, error)
	InsertBatch(ctx context.Context, batch models.Batch) error
	PersistBatch(ctx context.Context, batch models.Batch) (models.Batch, error)
	PersistReport(ctx context.Context, report models.Report) (models.Report, error)
	ReportsForBatch(ctx context.Context, batchID string) ([]models.Report, error)
	ResolveReport(ctx context.Context, reportID string, at time.Time) (models.Report, error)
}

// Journal receives a copy of every accepted report. Failures are logged only.
type Journal interface {
	AppendReport(ctx context.Context, batch models.Batch, report models.Report) error
}

// Locker serializes submissions for one batch across instances.
type Locker interface {
	Lock(ctx context.Context, batchID string) (release func(), err error)
}

// Submission is an incoming field report.
type Submission struct {
	BatchID    string            `json:"batchId" validate:"required"`
	ReportType models.ReportType `json:"reportType" validate:"required,oneof=mortality daily health feed vaccination"`
	Fields     map[string]any    `json:"fields"`
	Meta       Meta              `json:"meta"`
}

// Meta carries submission metadata that does not feed the calculators.
type Meta struct {
	UrgencyLevel models.UrgencyLevel `json:"urgencyLevel" validate:"omitempty,oneof=Low Medium High Critical"`
	SubmittedBy  string              `json:"submittedBy"`
}

// Result is the outcome of an accepted submission.
type Result struct {
	Report  models.Report         `json:"report"`
	Batch   models.Batch          `json:"batch"`
	Patch   models.BatchPatch     `json:"batchPatch"`
	Metrics models.DerivedMetrics `json:"derivedMetrics"`
	Changed bool                  `json:"changed"`
}

// NewBatch is a batch registration request.
type NewBatch struct {
	ID            string             `json:"id"`
	Name          string             `json:"name" validate:"required"`
	BirdCount     int                `json:"birdCount" validate:"min=0"`
	InitialWeight float64            `json:"initialWeight" validate:"min=0"`
	Status        models.BatchStatus `json:"status" validate:"omitempty,oneof=Planning Active"`
	StartDate     time.Time          `json:"startDate"`
}

// Service is the aggregation applier: it turns reports into batch updates.
type Service struct {
	store       Store
	journal     Journal
	locker      Locker
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	maxAttempts int
}

// NewService wires the applier. journal and locker may be nil.
func NewService(store Store, journal Journal, locker Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Service{
		store:       store,
		journal:     journal,
		locker:      locker,
		validate:    v,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
		maxAttempts: defaultMaxAttempts,
	}
}

// SetMaxAttempts bounds the read-compute-write retries on version conflicts.
func (s *Service) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// SubmitReport validates and normalizes a report, merges its derived effect
// into the batch under an optimistic version check and persists the report
// with its metrics as audit payload.
func (s *Service) SubmitReport(ctx context.Context, sub Submission) (Result, error) {
	if err := s.validateStruct(sub); err != nil {
		return Result{}, err
	}

	fields := normalize.Normalize(sub.ReportType, sub.Fields)
	if err := checkFields(sub.ReportType, fields); err != nil {
		return Result{}, err
	}

	release := s.lock(ctx, sub.BatchID)
	defer release()

	var (
		calc    metrics.Result
		changed bool
		now     time.Time
		before  models.Batch
	)
	batch, err := s.mutate(ctx, sub.BatchID, func(current models.Batch) (models.Batch, error) {
		before = current
		now = s.now().UTC()
		res, err := metrics.Calculate(sub.ReportType, fields, current, now)
		if err != nil {
			return models.Batch{}, &ValidationError{Field: "reportType", ReportType: sub.ReportType, Reason: err.Error()}
		}
		calc = res

		var next models.Batch
		next, changed = res.Patch.Apply(current)
		next.Reconcile()
		return next, nil
	})
	if err != nil {
		return Result{}, err
	}

	urgency := sub.Meta.UrgencyLevel
	if urgency == "" {
		urgency = models.UrgencyLow
	}

	report, err := s.store.PersistReport(ctx, models.Report{
		ID:            s.newID(),
		BatchID:       batch.ID,
		ReportType:    sub.ReportType,
		Fields:        sub.Fields,
		ProcessedData: calc.Metrics,
		UrgencyLevel:  urgency,
		SubmittedBy:   sub.Meta.SubmittedBy,
		CreatedAt:     now,
	})
	if err != nil {
		s.logger.Error("report persist failed after batch update",
			zap.String("batch_id", batch.ID),
			zap.String("report_type", string(sub.ReportType)),
			zap.Error(err))
		s.undo(ctx, before, batch)
		return Result{}, &PersistenceError{Op: "persist report", Err: err}
	}

	s.mirror(ctx, batch, report)

	s.logger.Info("report applied",
		zap.String("batch_id", batch.ID),
		zap.String("report_id", report.ID),
		zap.String("report_type", string(report.ReportType)),
		zap.Bool("changed", changed),
		zap.Int64("version", batch.Version))

	return Result{
		Report:  report,
		Batch:   batch,
		Patch:   calc.Patch,
		Metrics: calc.Metrics,
		Changed: changed,
	}, nil
}

// RegisterBatch creates a new batch in Planning or Active state.
func (s *Service) RegisterBatch(ctx context.Context, req NewBatch) (models.Batch, error) {
	if err := s.validateStruct(req); err != nil {
		return models.Batch{}, err
	}

	now := s.now().UTC()
	batch := models.Batch{
		ID:            req.ID,
		Name:          req.Name,
		BirdCount:     req.BirdCount,
		CurrentWeight: req.InitialWeight,
		InitialWeight: req.InitialWeight,
		HealthScore:   100,
		Status:        req.Status,
		StartDate:     req.StartDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if batch.ID == "" {
		batch.ID = s.newID()
	}
	if batch.Status == "" {
		batch.Status = models.BatchActive
	}
	if batch.StartDate.IsZero() {
		batch.StartDate = now
	}
	batch.Reconcile()

	if err := s.store.InsertBatch(ctx, batch); err != nil {
		return models.Batch{}, &PersistenceError{Op: "insert batch", Err: err}
	}

	s.logger.Info("batch registered", zap.String("batch_id", batch.ID), zap.Int("bird_count", batch.BirdCount))
	return batch, nil
}

// GetBatch returns the current snapshot of a batch.
func (s *Service) GetBatch(ctx context.Context, id string) (models.Batch, error) {
	batch, err := s.store.FetchBatch(ctx, id)
	if err != nil {
		return models.Batch{}, s.fetchError(err)
	}
	return batch, nil
}

// Reports returns the report ledger of a batch, oldest first.
func (s *Service) Reports(ctx context.Context, batchID string) ([]models.Report, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	reports, err := s.store.ReportsForBatch(ctx, batchID)
	if err != nil {
		return nil, &PersistenceError{Op: "list reports", Err: err}
	}
	return reports, nil
}

// CompleteBatch marks a batch Completed. Batches are never deleted.
func (s *Service) CompleteBatch(ctx context.Context, id string) (models.Batch, error) {
	release := s.lock(ctx, id)
	defer release()

	return s.mutate(ctx, id, func(current models.Batch) (models.Batch, error) {
		current.Status = models.BatchCompleted
		return current, nil
	})
}

// ResolveReport marks an urgent report as handled.
func (s *Service) ResolveReport(ctx context.Context, reportID string) (models.Report, error) {
	report, err := s.store.ResolveReport(ctx, reportID, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			return models.Report{}, err
		}
		return models.Report{}, &PersistenceError{Op: "resolve report", Err: err}
	}
	return report, nil
}

// RebuildBatch re-derives the aggregate by folding the batch's report ledger
// over a zeroed snapshot. The stored batch is treated as a cache of that fold.
func (s *Service) RebuildBatch(ctx context.Context, id string) (models.Batch, error) {
	release := s.lock(ctx, id)
	defer release()

	return s.rebuild(ctx, id)
}

func (s *Service) rebuild(ctx context.Context, id string) (models.Batch, error) {
	reports, err := s.store.ReportsForBatch(ctx, id)
	if err != nil {
		return models.Batch{}, &PersistenceError{Op: "list reports", Err: err}
	}

	return s.mutate(ctx, id, func(current models.Batch) (models.Batch, error) {
		rebuilt := Replay(current, reports, s.logger)
		if rebuilt.TotalMortality != current.TotalMortality || rebuilt.FeedUsed != current.FeedUsed || rebuilt.Vaccinations != current.Vaccinations {
			s.logger.Warn("batch aggregate drifted from report ledger",
				zap.String("batch_id", id),
				zap.Int("stored_mortality", current.TotalMortality),
				zap.Int("ledger_mortality", rebuilt.TotalMortality),
				zap.Float64("stored_feed", current.FeedUsed),
				zap.Float64("ledger_feed", rebuilt.FeedUsed))
		}
		return rebuilt, nil
	})
}

// undo takes back a batch update whose report could not be recorded, so the
// submission can be retried without being counted twice. The pre-image is
// written back under the version check; if another writer got in first the
// batch is re-derived from the report ledger instead.
func (s *Service) undo(ctx context.Context, before, applied models.Batch) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), undoTimeout)
	defer cancel()

	restored := before
	restored.Version = applied.Version
	restored.UpdatedAt = s.now().UTC()

	_, err := s.store.PersistBatch(ctx, restored)
	switch {
	case err == nil:
		s.logger.Info("batch update rolled back", zap.String("batch_id", applied.ID), zap.Int64("version", applied.Version))
		return
	case !errors.Is(err, models.ErrVersionConflict):
		s.logger.Error("batch rollback failed, rebuild required", zap.String("batch_id", applied.ID), zap.Error(err))
		return
	}

	if _, err := s.rebuild(ctx, applied.ID); err != nil {
		s.logger.Error("batch rebuild after failed report failed", zap.String("batch_id", applied.ID), zap.Error(err))
	}
}

// Replay folds reports, in the order given, over the identity of base with
// every aggregate field reset.
func Replay(base models.Batch, reports []models.Report, logger *zap.Logger) models.Batch {
	if logger == nil {
		logger = zap.NewNop()
	}

	batch := models.Batch{
		ID:            base.ID,
		Name:          base.Name,
		BirdCount:     base.BirdCount,
		CurrentWeight: base.InitialWeight,
		InitialWeight: base.InitialWeight,
		HealthScore:   100,
		Status:        base.Status,
		StartDate:     base.StartDate,
		Version:       base.Version,
		CreatedAt:     base.CreatedAt,
		UpdatedAt:     base.UpdatedAt,
	}
	batch.Reconcile()

	for _, r := range reports {
		fields := normalize.Normalize(r.ReportType, r.Fields)
		res, err := metrics.Calculate(r.ReportType, fields, batch, r.CreatedAt)
		if err != nil {
			logger.Warn("skip report during replay", zap.String("report_id", r.ID), zap.Error(err))
			continue
		}
		batch, _ = res.Patch.Apply(batch)
		batch.Reconcile()
	}

	return batch
}

// mutate runs the fetch-compute-write sequence, retrying from a fresh read
// when the optimistic version check fails.
func (s *Service) mutate(ctx context.Context, id string, fn func(models.Batch) (models.Batch, error)) (models.Batch, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.store.FetchBatch(ctx, id)
		if err != nil {
			return models.Batch{}, s.fetchError(err)
		}

		next, err := fn(current)
		if err != nil {
			return models.Batch{}, err
		}
		next.Version = current.Version
		next.UpdatedAt = s.now().UTC()

		stored, err := s.store.PersistBatch(ctx, next)
		if err == nil {
			return stored, nil
		}

		if errors.Is(err, models.ErrVersionConflict) && attempt < s.maxAttempts {
			s.logger.Debug("batch version conflict, retrying",
				zap.String("batch_id", id),
				zap.Int("attempt", attempt))
			continue
		}

		return models.Batch{}, &PersistenceError{Op: "persist batch", Err: err}
	}
}

func (s *Service) lock(ctx context.Context, batchID string) func() {
	if s.locker == nil {
		return func() {}
	}

	release, err := s.locker.Lock(ctx, batchID)
	if err != nil {
		// The version check still guards the write.
		s.logger.Warn("could not obtain batch lock; proceeding without lock",
			zap.String("batch_id", batchID),
			zap.Error(err))
		return func() {}
	}
	return release
}

func (s *Service) mirror(ctx context.Context, batch models.Batch, report models.Report) {
	if s.journal == nil {
		return
	}
	if err := s.journal.AppendReport(ctx, batch, report); err != nil {
		s.logger.Warn("report journal mirror failed",
			zap.String("batch_id", batch.ID),
			zap.String("report_id", report.ID),
			zap.Error(err))
	}
}

func (s *Service) fetchError(err error) error {
	if errors.Is(err, models.ErrBatchNotFound) {
		return err
	}
	return &PersistenceError{Op: "fetch batch", Err: err}
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return &ValidationError{Field: fe.Field(), Reason: "failed " + reason}
	}
	return &ValidationError{Field: "request", Reason: err.Error()}
}

func checkFields(kind models.ReportType, fields normalize.Fields) error {
	if missing := fields.Missing(); len(missing) > 0 {
		return &ValidationError{Field: string(missing[0]), ReportType: kind, Reason: "is required"}
	}

	for _, f := range []normalize.Field{normalize.DeathCount, normalize.FeedAmount, normalize.VaccinationCount} {
		if !fields.Has(f) {
			continue
		}
		n := fields.Number(f)
		switch {
		case n < 0:
			return &ValidationError{Field: string(f), ReportType: kind, Reason: "must not be negative"}
		case n > MaxQuantity:
			return &ValidationError{Field: string(f), ReportType: kind, Reason: fmt.Sprintf("must not exceed %d", MaxQuantity)}
		case f != normalize.FeedAmount && n != math.Trunc(n):
			return &ValidationError{Field: string(f), ReportType: kind, Reason: "must be a whole number"}
		}
	}
	return nil
}
