package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/middleware"
	"github.com/cll-genie-server/internal/service"
)

const msgTryAgain = "The change could not be saved. Please try again."

// respondError maps workflow errors to HTTP responses. V-QUEST messages are
// shown verbatim; persistence details stay in the log and audit trail.
func (s *Server) respondError(c *gin.Context, err error) {
	correlationID := c.GetString(middleware.CorrelationIDKey)
	log := s.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"path":           c.FullPath(),
		"user":           middleware.User(c),
	})

	if kind := domain.KindOf(err); kind != 0 {
		log = log.WithField("kind", kind.String())
	}

	var vqErr *domain.VQuestError
	var storeErr *domain.StoreError
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &vqErr):
		log.WithError(err).Warn("V-QUEST submission failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"kind":           vqErr.Kind.String(),
			"errors":         vqErr.Messages,
			"correlation_id": correlationID,
		})
	case errors.As(err, &storeErr):
		log.WithError(err).Error("Store write failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"kind":           storeErr.Kind().String(),
			"error":          msgTryAgain,
			"correlation_id": correlationID,
		})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          validationErr.Message,
			"field":          validationErr.Field,
			"value":          validationErr.Value,
			"correlation_id": correlationID,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
	case errors.Is(err, domain.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
	case errors.Is(err, service.ErrSummaryUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
	case errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).Warn("Request timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":          "Request timeout",
			"correlation_id": correlationID,
		})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "Internal server error",
			"correlation_id": correlationID,
		})
	}
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
}
