package httpapi

import (
	"errors"
	"io"
	"net/http"

	"voice-platform/internal/reconcile"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody leaves room for long transcripts.
const maxWebhookBody = 8 << 20

// ElevenLabsWebhook hands the raw body to the reconciler. Ignorable events
// still get 200 so the provider does not retry them.
func (h Handlers) ElevenLabsWebhook(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Reconciler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "webhooks not configured"})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Error("webhook body unreadable", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "unreadable body"})
		return
	}

	res, err := h.Reconciler.HandleCallback(c.Request.Context(), raw, c.GetHeader(telephony.SignatureHeader))
	switch {
	case errors.Is(err, reconcile.ErrUnauthorized):
		log.Warn("webhook signature rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Invalid signature"})
		return
	case err != nil:
		log.Error("webhook reconciliation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if !res.Handled {
		log.Debug("webhook acknowledged", "reason", res.Reason, "event_type", res.EventType)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
