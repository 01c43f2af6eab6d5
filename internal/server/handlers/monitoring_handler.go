package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

// AlertMonitor is the alert engine surface.
type AlertMonitor interface {
	RunAlertScan(ctx context.Context) ([]models.Alert, error)
	Alerts() []models.Alert
	Acknowledge(ctx context.Context, key string) error
	Dismiss(ctx context.Context, key string) error
}

// InsightMonitor is the insight engine surface.
type InsightMonitor interface {
	RunInsightScan(ctx context.Context) ([]models.Insight, error)
	Insights() []models.Insight
	Acknowledge(ctx context.Context, key string) error
	Dismiss(ctx context.Context, key string) error
}

// MonitoringHandler serves the alert and insight lists and their actions.
type MonitoringHandler struct {
	alerts   AlertMonitor
	insights InsightMonitor
	logger   *zap.Logger
}

// NewMonitoringHandler constructs the monitoring handler.
func NewMonitoringHandler(alerts AlertMonitor, insights InsightMonitor, logger *zap.Logger) *MonitoringHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitoringHandler{alerts: alerts, insights: insights, logger: logger}
}

// Alerts returns the alerts of the last scan.
func (h *MonitoringHandler) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(h.alerts.Alerts()))
}

// ScanAlerts runs an alert scan now.
func (h *MonitoringHandler) ScanAlerts(c *gin.Context) {
	alerts, err := h.alerts.RunAlertScan(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(alerts))
}

// AcknowledgeAlert marks an alert read.
func (h *MonitoringHandler) AcknowledgeAlert(c *gin.Context) {
	h.act(c, h.alerts.Acknowledge)
}

// DismissAlert hides an alert until its condition clears.
func (h *MonitoringHandler) DismissAlert(c *gin.Context) {
	h.act(c, h.alerts.Dismiss)
}

// Insights returns the insights of the last scan.
func (h *MonitoringHandler) Insights(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(h.insights.Insights()))
}

// ScanInsights runs an insight scan now.
func (h *MonitoringHandler) ScanInsights(c *gin.Context) {
	insights, err := h.insights.RunInsightScan(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(insights))
}

// AcknowledgeInsight marks an insight read.
func (h *MonitoringHandler) AcknowledgeInsight(c *gin.Context) {
	h.act(c, h.insights.Acknowledge)
}

// DismissInsight hides an insight until its condition clears.
func (h *MonitoringHandler) DismissInsight(c *gin.Context) {
	h.act(c, h.insights.Dismiss)
}

func (h *MonitoringHandler) act(c *gin.Context, fn func(ctx context.Context, key string) error) {
	if err := fn(c.Request.Context(), c.Param("key")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
