package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// AlertScanner runs one alert scan.
type AlertScanner interface {
	RunAlertScan(ctx context.Context) ([]models.Alert, error)
}

// InsightScanner runs one insight scan.
type InsightScanner interface {
	RunInsightScan(ctx context.Context) ([]models.Insight, error)
}

// WeeklyReporter builds the weekly summary text.
type WeeklyReporter interface {
	GenerateWeeklyReport(ctx context.Context, now time.Time) (string, error)
}

// Messenger delivers outbound WhatsApp messages.
type Messenger interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.MonitoringConfig
	managerID string
	alerts    AlertScanner
	insights  InsightScanner
	reporter  WeeklyReporter
	messenger Messenger
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. reporter and messenger may be
// nil, in which case the weekly report is not scheduled.
func NewScheduler(cfg config.Config, alerts AlertScanner, insights InsightScanner, reporter WeeklyReporter, messenger Messenger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Monitoring.Location())),
		cfg:       cfg.Monitoring,
		managerID: cfg.WhatsApp.ManagerID,
		alerts:    alerts,
		insights:  insights,
		reporter:  reporter,
		messenger: messenger,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("alert_schedule", s.cfg.AlertSchedule),
		zap.String("insight_schedule", s.cfg.InsightSchedule))

	if _, err := s.cron.AddFunc(s.cfg.AlertSchedule, s.runAlertScan); err != nil {
		return fmt.Errorf("schedule alert scan %q: %w", s.cfg.AlertSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.InsightSchedule, s.runInsightScan); err != nil {
		return fmt.Errorf("schedule insight scan %q: %w", s.cfg.InsightSchedule, err)
	}
	if s.reporter != nil && s.messenger != nil && s.managerID != "" {
		if _, err := s.cron.AddFunc(s.cfg.WeeklyReportCron, s.sendWeeklyReport); err != nil {
			return fmt.Errorf("schedule weekly report %q: %w", s.cfg.WeeklyReportCron, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runAlertScan() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	alerts, err := s.alerts.RunAlertScan(ctx)
	if err != nil {
		s.logger.Error("scheduled alert scan failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled alert scan finished", zap.Int("alerts", len(alerts)))
}

func (s *Scheduler) runInsightScan() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	insights, err := s.insights.RunInsightScan(ctx)
	if err != nil {
		s.logger.Error("scheduled insight scan failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled insight scan finished", zap.Int("insights", len(insights)))
}

func (s *Scheduler) sendWeeklyReport() {
	s.logger.Info("generating weekly report")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.reporter.GenerateWeeklyReport(ctx, s.now().In(s.cfg.Location()))
	if err != nil {
		s.logger.Error("failed to generate weekly report", zap.Error(err))
		return
	}

	req := models.OutboundMessageRequest{
		To:      s.managerID,
		Message: report,
	}

	if err := s.messenger.SendOutbound(ctx, req); err != nil {
		s.logger.Error("failed to send weekly report", zap.Error(err))
	} else {
		s.logger.Info("weekly report sent successfully")
	}
}
