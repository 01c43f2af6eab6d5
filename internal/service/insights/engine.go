// Package insights derives prioritized, deduplicated recommendations from
// farm-wide batch and report trends.
package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

// Store is the read side of the record store the scan needs.
type Store interface {
	ActiveBatches(ctx context.Context) ([]models.Batch, error)
	ReportsSince(ctx context.Context, since time.Time) ([]models.Report, error)
	UnresolvedCriticalReports(ctx context.Context) ([]models.Report, error)
}

// StateStore keeps read/dismissed flags per insight key across scans.
type StateStore interface {
	All(ctx context.Context) (map[string]models.AlertState, error)
	Get(ctx context.Context, key string) (models.AlertState, bool, error)
	Put(ctx context.Context, key string, state models.AlertState) error
	Delete(ctx context.Context, keys ...string) error
}

// Summarizer condenses insights into a short digest for managers.
type Summarizer interface {
	Summarize(ctx context.Context, insights []models.Insight) (string, error)
}

// DigestSender delivers a digest message.
type DigestSender interface {
	SendDigest(ctx context.Context, text string) error
}

// Engine runs insight scans and serves the latest visible insight set.
type Engine struct {
	store      Store
	states     StateStore
	summarizer Summarizer
	sender     DigestSender
	rules      config.InsightRules
	logger     *zap.Logger
	now        func() time.Time

	scanMu   sync.Mutex
	mu       sync.RWMutex
	snapshot []models.Insight
}

// NewEngine builds an insight engine.
func NewEngine(store Store, states StateStore, rules config.InsightRules, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		states: states,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// SetDigest enables a digest of new high priority insights after each scan.
// If summarizer is nil the insight titles are sent as a plain list.
func (e *Engine) SetDigest(summarizer Summarizer, sender DigestSender) {
	e.summarizer = summarizer
	e.sender = sender
}

// RunInsightScan evaluates the whole farm and returns the visible insights,
// high priority first.
func (e *Engine) RunInsightScan(ctx context.Context) ([]models.Insight, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	now := e.now().UTC()

	in, err := e.load(ctx, now)
	if err != nil {
		return nil, err
	}
	generated := Evaluate(in, e.rules, now)

	states, err := e.states.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load insight states: %w", err)
	}

	var fresh []models.Insight
	visible := make([]models.Insight, 0, len(generated))
	live := make(map[string]bool, len(generated))
	for _, insight := range generated {
		live[insight.Key] = true

		state, seen := states[insight.Key]
		if !seen {
			state = models.AlertState{FirstSeenAt: now}
			if err := e.states.Put(ctx, insight.Key, state); err != nil {
				e.logger.Warn("failed to store insight state", zap.String("key", insight.Key), zap.Error(err))
			}
		}

		insight.Read = state.Read
		insight.Dismissed = state.Dismissed
		insight.FirstSeenAt = state.FirstSeenAt
		if insight.Dismissed {
			continue
		}
		if !seen && insight.Priority == models.PriorityHigh {
			fresh = append(fresh, insight)
		}
		visible = append(visible, insight)
	}

	var cleared []string
	for key := range states {
		if !live[key] {
			cleared = append(cleared, key)
		}
	}
	if err := e.states.Delete(ctx, cleared...); err != nil {
		e.logger.Warn("failed to drop cleared insight states", zap.Int("count", len(cleared)), zap.Error(err))
	}

	e.mu.Lock()
	e.snapshot = visible
	e.mu.Unlock()

	e.digest(ctx, fresh)

	e.logger.Info("insight scan completed",
		zap.Int("batches", len(in.Batches)),
		zap.Int("reports", len(in.Reports)),
		zap.Int("insights", len(visible)),
		zap.Int("new_high_priority", len(fresh)))

	return cloneInsights(visible), nil
}

func (e *Engine) load(ctx context.Context, now time.Time) (Input, error) {
	batches, err := e.store.ActiveBatches(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("load active batches: %w", err)
	}

	since := now.AddDate(0, 0, -e.rules.CadenceWindowDays)
	reports, err := e.store.ReportsSince(ctx, since)
	if err != nil {
		return Input{}, fmt.Errorf("load reports since %s: %w", since.Format(time.RFC3339), err)
	}

	unresolved, err := e.store.UnresolvedCriticalReports(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("load unresolved critical reports: %w", err)
	}

	return Input{Batches: batches, Reports: reports, Unresolved: unresolved}, nil
}

// Insights returns the visible insights of the latest scan.
func (e *Engine) Insights() []models.Insight {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneInsights(e.snapshot)
}

// Acknowledge marks an insight as read.
func (e *Engine) Acknowledge(ctx context.Context, key string) error {
	return e.update(ctx, key, func(s *models.AlertState) { s.Read = true })
}

// Dismiss hides an insight while its condition persists.
func (e *Engine) Dismiss(ctx context.Context, key string) error {
	return e.update(ctx, key, func(s *models.AlertState) { s.Dismissed = true })
}

func (e *Engine) update(ctx context.Context, key string, fn func(*models.AlertState)) error {
	state, ok, err := e.states.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load insight state %s: %w", key, err)
	}
	if !ok {
		return models.ErrInsightNotFound
	}

	fn(&state)
	if err := e.states.Put(ctx, key, state); err != nil {
		return fmt.Errorf("store insight state %s: %w", key, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	kept := make([]models.Insight, 0, len(e.snapshot))
	for _, in := range e.snapshot {
		if in.Key == key {
			in.Read = state.Read
			in.Dismissed = state.Dismissed
			if in.Dismissed {
				continue
			}
		}
		kept = append(kept, in)
	}
	e.snapshot = kept
	return nil
}

func (e *Engine) digest(ctx context.Context, fresh []models.Insight) {
	if e.sender == nil || len(fresh) == 0 {
		return
	}

	text := plainDigest(fresh)
	if e.summarizer != nil {
		summary, err := e.summarizer.Summarize(ctx, fresh)
		if err != nil {
			e.logger.Warn("insight summarizer failed; sending plain digest", zap.Error(err))
		} else if summary != "" {
			text = summary
		}
	}

	if err := e.sender.SendDigest(ctx, text); err != nil {
		e.logger.Warn("failed to send insight digest", zap.Error(err))
	}
}

func plainDigest(insights []models.Insight) string {
	text := "Farm insights:"
	for _, in := range insights {
		text += fmt.Sprintf("\n- %s: %s", in.Title, in.Recommendation)
	}
	return text
}

func cloneInsights(in []models.Insight) []models.Insight {
	out := make([]models.Insight, len(in))
	copy(out, in)
	return out
}
