package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

// HandleStripeWebhook hands the untouched body to the reconciler; the
// signature covers the exact bytes.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	result, err := s.paymentsvc.IngestWebhook(ctx, payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result != nil {
		c.Set("webhook_event_type", result.EventType)
		logger.FromContext(ctx).Info("stripe webhook handled",
			zap.String("event_id", result.EventID),
			zap.String("event_type", result.EventType),
			zap.String("outcome", result.Outcome),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
