// Package alerts raises deduplicated threshold alerts over active batches.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const defaultRecentReportLimit = 50

// Store is the read side of the record store the scan needs.
type Store interface {
	ActiveBatches(ctx context.Context) ([]models.Batch, error)
	RecentReports(ctx context.Context, batchID string, limit int) ([]models.Report, error)
	UnresolvedCriticalReports(ctx context.Context) ([]models.Report, error)
}

// StateStore keeps read/dismissed flags per alert key across scans.
type StateStore interface {
	Get(ctx context.Context, key string) (models.AlertState, bool, error)
	All(ctx context.Context) (map[string]models.AlertState, error)
	Put(ctx context.Context, key string, state models.AlertState) error
	Delete(ctx context.Context, keys ...string) error
}

// Notifier is told about critical alerts the first time they are raised.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert models.Alert) error
}

// Engine runs alert scans and serves the latest visible alert set.
type Engine struct {
	store    Store
	states   StateStore
	notifier Notifier
	rules    config.AlertRules
	limit    int
	logger   *zap.Logger
	now      func() time.Time

	scanMu   sync.Mutex
	mu       sync.RWMutex
	snapshot []models.Alert
}

// NewEngine builds an alert engine.
func NewEngine(store Store, states StateStore, rules config.AlertRules, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		states: states,
		rules:  rules,
		limit:  defaultRecentReportLimit,
		logger: logger,
		now:    time.Now,
	}
}

// SetNotifier registers the receiver of new critical alerts.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SetRecentReportLimit bounds how many reports per batch a scan reads.
func (e *Engine) SetRecentReportLimit(n int) {
	if n > 0 {
		e.limit = n
	}
}

// RunAlertScan evaluates every active batch and returns the visible alerts,
// most severe first. A batch whose reports cannot be read is skipped and
// keeps its existing alert state.
func (e *Engine) RunAlertScan(ctx context.Context) ([]models.Alert, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	now := e.now().UTC()

	batches, err := e.store.ActiveBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active batches: %w", err)
	}

	unresolved, err := e.store.UnresolvedCriticalReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unresolved critical reports: %w", err)
	}
	pending := make(map[string][]models.Report)
	for _, r := range unresolved {
		pending[r.BatchID] = append(pending[r.BatchID], r)
	}

	var generated []models.Alert
	skipped := make(map[string]bool)
	for _, batch := range batches {
		recent, err := e.store.RecentReports(ctx, batch.ID, e.limit)
		if err != nil {
			e.logger.Warn("skipping batch in alert scan",
				zap.String("batch_id", batch.ID),
				zap.Error(err))
			skipped[batch.ID] = true
			continue
		}
		generated = append(generated, Evaluate(batch, withPending(recent, pending[batch.ID]), e.rules, now)...)
	}

	states, err := e.states.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alert states: %w", err)
	}

	visible := make([]models.Alert, 0, len(generated))
	live := make(map[string]bool, len(generated))
	for _, alert := range generated {
		live[alert.Key] = true

		state, seen := states[alert.Key]
		if !seen {
			state = models.AlertState{FirstSeenAt: now}
			if err := e.states.Put(ctx, alert.Key, state); err != nil {
				e.logger.Warn("failed to store alert state", zap.String("key", alert.Key), zap.Error(err))
			}
		}

		alert.Read = state.Read
		alert.Dismissed = state.Dismissed
		alert.FirstSeenAt = state.FirstSeenAt
		if alert.Dismissed {
			continue
		}
		if !seen && alert.Severity == models.SeverityCritical {
			e.notify(ctx, alert)
		}
		visible = append(visible, alert)
	}

	var cleared []string
	for key := range states {
		if live[key] || skipped[scopeOf(key)] {
			continue
		}
		cleared = append(cleared, key)
	}
	if err := e.states.Delete(ctx, cleared...); err != nil {
		e.logger.Warn("failed to drop cleared alert states", zap.Int("count", len(cleared)), zap.Error(err))
	}

	sortAlerts(visible)

	e.mu.Lock()
	e.snapshot = visible
	e.mu.Unlock()

	e.logger.Info("alert scan completed",
		zap.Int("batches", len(batches)),
		zap.Int("skipped", len(skipped)),
		zap.Int("alerts", len(visible)),
		zap.Int("cleared", len(cleared)))

	return cloneAlerts(visible), nil
}

// Alerts returns the visible alerts of the latest scan.
func (e *Engine) Alerts() []models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneAlerts(e.snapshot)
}

// Acknowledge marks an alert as read.
func (e *Engine) Acknowledge(ctx context.Context, key string) error {
	return e.update(ctx, key, func(s *models.AlertState) { s.Read = true })
}

// Dismiss hides an alert until its condition clears and is raised again.
func (e *Engine) Dismiss(ctx context.Context, key string) error {
	return e.update(ctx, key, func(s *models.AlertState) { s.Dismissed = true })
}

func (e *Engine) update(ctx context.Context, key string, fn func(*models.AlertState)) error {
	state, ok, err := e.states.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load alert state %s: %w", key, err)
	}
	if !ok {
		return models.ErrAlertNotFound
	}

	fn(&state)
	if err := e.states.Put(ctx, key, state); err != nil {
		return fmt.Errorf("store alert state %s: %w", key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.snapshot[:0]
	for _, a := range e.snapshot {
		if a.Key == key {
			a.Read = state.Read
			a.Dismissed = state.Dismissed
			if a.Dismissed {
				continue
			}
		}
		kept = append(kept, a)
	}
	e.snapshot = kept
	return nil
}

func (e *Engine) notify(ctx context.Context, alert models.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyAlert(ctx, alert); err != nil {
		e.logger.Warn("failed to notify critical alert",
			zap.String("key", alert.Key),
			zap.Error(err))
	}
}

// withPending appends unresolved critical reports that fell outside the
// recent window. Both inputs are newest first and anything outside the window
// is older than all of it, so the result stays newest first.
func withPending(recent, pending []models.Report) []models.Report {
	if len(pending) == 0 {
		return recent
	}
	seen := make(map[string]bool, len(recent))
	for _, r := range recent {
		seen[r.ID] = true
	}
	out := recent
	for _, r := range pending {
		if !seen[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func scopeOf(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func sortAlerts(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
		}
		return alerts[i].Key < alerts[j].Key
	})
}

func cloneAlerts(in []models.Alert) []models.Alert {
	out := make([]models.Alert, len(in))
	copy(out, in)
	return out
}
