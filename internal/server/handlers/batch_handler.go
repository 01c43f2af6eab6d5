package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
)

// Aggregator is the batch and report surface of the aggregation service.
type Aggregator interface {
	RegisterBatch(ctx context.Context, req aggregation.NewBatch) (models.Batch, error)
	GetBatch(ctx context.Context, id string) (models.Batch, error)
	Reports(ctx context.Context, batchID string) ([]models.Report, error)
	CompleteBatch(ctx context.Context, id string) (models.Batch, error)
	RebuildBatch(ctx context.Context, id string) (models.Batch, error)
	SubmitReport(ctx context.Context, sub aggregation.Submission) (aggregation.Result, error)
	ResolveReport(ctx context.Context, reportID string) (models.Report, error)
}

// BatchHandler exposes batches and report submission over HTTP.
type BatchHandler struct {
	svc    Aggregator
	logger *zap.Logger
}

// NewBatchHandler constructs the batch handler.
func NewBatchHandler(svc Aggregator, logger *zap.Logger) *BatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchHandler{svc: svc, logger: logger}
}

// Register creates a batch.
func (h *BatchHandler) Register(c *gin.Context) {
	var req aggregation.NewBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	batch, err := h.svc.RegisterBatch(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// Get returns a batch snapshot.
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Reports lists the report ledger of a batch.
func (h *BatchHandler) Reports(c *gin.Context) {
	reports, err := h.svc.Reports(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// Complete closes a batch.
func (h *BatchHandler) Complete(c *gin.Context) {
	batch, err := h.svc.CompleteBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// Rebuild re-derives a batch from its reports.
func (h *BatchHandler) Rebuild(c *gin.Context) {
	batch, err := h.svc.RebuildBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// SubmitReport applies a field report to the batch named in the path.
func (h *BatchHandler) SubmitReport(c *gin.Context) {
	var sub aggregation.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.logger.Warn("invalid report payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sub.BatchID = c.Param("id")

	res, err := h.svc.SubmitReport(c.Request.Context(), sub)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ResolveReport marks an urgent report handled.
func (h *BatchHandler) ResolveReport(c *gin.Context) {
	report, err := h.svc.ResolveReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
