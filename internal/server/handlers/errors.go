package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
)

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *aggregation.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, models.ErrBatchNotFound),
		errors.Is(err, models.ErrReportNotFound),
		errors.Is(err, models.ErrAlertNotFound),
		errors.Is(err, models.ErrInsightNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrVersionConflict):
		logger.Warn("batch update lost to concurrent writers", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "batch is being updated, retry the request"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
