package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tiagowl/ImgMigrator/internal/dispatch"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const maxWebhookBody = 64 << 10

// dispatchWebhook queues the run named by a signed payload. It answers before the run starts.
func (s *Server) dispatchWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	payload, err := dispatch.ParseWebhook(body, c.GetHeader(dispatch.SignatureHeader), s.signingKey)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSignature) {
			s.logger.Warn("rejected webhook", "error", err)
		}
		s.fail(c, err)
		return
	}

	if s.queue == nil {
		s.fail(c, fmt.Errorf("%w: no dispatch queue", shared.ErrServiceUnavailable))
		return
	}

	err = s.queue.Enqueue(payload.MigrationID, payload.UserID)
	switch {
	case err == nil, errors.Is(err, shared.ErrAlreadyQueued):
		c.JSON(http.StatusAccepted, gin.H{"success": true, "migration_id": payload.MigrationID})
	default:
		s.fail(c, err)
	}
}
