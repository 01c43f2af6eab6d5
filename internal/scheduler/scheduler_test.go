package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

type fakeAlerts struct{ runs int }

func (f *fakeAlerts) RunAlertScan(context.Context) ([]models.Alert, error) {
	f.runs++
	return nil, nil
}

type fakeInsights struct{ runs int }

func (f *fakeInsights) RunInsightScan(context.Context) ([]models.Insight, error) {
	f.runs++
	return nil, errors.New("store unavailable")
}

type fakeReporter struct{ at time.Time }

func (f *fakeReporter) GenerateWeeklyReport(_ context.Context, now time.Time) (string, error) {
	f.at = now
	return "Weekly report", nil
}

type fakeMessenger struct{ sent []models.OutboundMessageRequest }

func (f *fakeMessenger) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	f.sent = append(f.sent, req)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		WhatsApp: config.WhatsAppConfig{ManagerID: "224611111111"},
		Monitoring: config.MonitoringConfig{
			AlertSchedule:    "@every 30m",
			InsightSchedule:  "@every 60m",
			WeeklyReportCron: "0 20 * * 5",
			Timezone:         "Africa/Conakry",
		},
	}
}

func TestStart_RegistersJobs(t *testing.T) {
	s := NewScheduler(testConfig(), &fakeAlerts{}, &fakeInsights{}, &fakeReporter{}, &fakeMessenger{}, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 3)
}

func TestStart_SkipsWeeklyReportWithoutManager(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsApp.ManagerID = ""

	s := NewScheduler(cfg, &fakeAlerts{}, &fakeInsights{}, &fakeReporter{}, &fakeMessenger{}, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 2)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.AlertSchedule = "every now and then"

	s := NewScheduler(cfg, &fakeAlerts{}, &fakeInsights{}, nil, nil, nil)
	assert.Error(t, s.Start())
}

func TestJobs(t *testing.T) {
	alerts := &fakeAlerts{}
	insights := &fakeInsights{}
	reporter := &fakeReporter{}
	messenger := &fakeMessenger{}
	s := NewScheduler(testConfig(), alerts, insights, reporter, messenger, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC) }

	s.runAlertScan()
	s.runInsightScan()
	s.sendWeeklyReport()

	assert.Equal(t, 1, alerts.runs)
	assert.Equal(t, 1, insights.runs)
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "224611111111", messenger.sent[0].To)
	assert.Equal(t, "Weekly report", messenger.sent[0].Message)
	assert.Equal(t, "Africa/Conakry", reporter.at.Location().String())
}
