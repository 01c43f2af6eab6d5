package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/server/handlers"
)

// Handlers groups the HTTP handlers mounted by New. Webhook may be nil when
// WhatsApp is not configured.
type Handlers struct {
	Batches    *handlers.BatchHandler
	Monitoring *handlers.MonitoringHandler
	Webhook    *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	batches := r.Group("/batches")
	batches.POST("", h.Batches.Register)
	batches.GET("/:id", h.Batches.Get)
	batches.GET("/:id/reports", h.Batches.Reports)
	batches.POST("/:id/reports", h.Batches.SubmitReport)
	batches.POST("/:id/complete", h.Batches.Complete)
	batches.POST("/:id/rebuild", h.Batches.Rebuild)
	r.POST("/reports/:id/resolve", h.Batches.ResolveReport)

	alerts := r.Group("/alerts")
	alerts.GET("", h.Monitoring.Alerts)
	alerts.POST("/scan", h.Monitoring.ScanAlerts)
	alerts.POST("/:key/ack", h.Monitoring.AcknowledgeAlert)
	alerts.POST("/:key/dismiss", h.Monitoring.DismissAlert)

	insights := r.Group("/insights")
	insights.GET("", h.Monitoring.Insights)
	insights.POST("/scan", h.Monitoring.ScanInsights)
	insights.POST("/:key/ack", h.Monitoring.AcknowledgeInsight)
	insights.POST("/:key/dismiss", h.Monitoring.DismissInsight)

	if h.Webhook != nil {
		r.GET("/webhook", h.Webhook.Verify)
		r.POST("/webhook", h.Webhook.Receive)
		r.POST("/send-message", h.Webhook.SendMessage)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized", zap.Bool("whatsapp", h.Webhook != nil))
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
