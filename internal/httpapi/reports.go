package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"voice-platform/internal/reporting"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reporting == nil {
		fail(c, http.StatusInternalServerError, "reporting not configured", "reporting not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	from, to, ok := parseRange(c, time.Now().UTC())
	if !ok {
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		TenantID:   tenantID,
		Range:      reporting.TimeRange{From: from, To: to},
		CampaignID: strings.TrimSpace(c.Query("campaign_id")),
	})
	if err != nil {
		h.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "summary": out})
}

func (h Handlers) Conversions(c *gin.Context) {
	if h.Reporting == nil {
		fail(c, http.StatusInternalServerError, "reporting not configured", "reporting not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	from, to, ok := parseRange(c, time.Now().UTC())
	if !ok {
		return
	}
	out, err := h.Reporting.Conversions(c.Request.Context(), reporting.ConversionsRequest{
		TenantID:   tenantID,
		Range:      reporting.TimeRange{From: from, To: to},
		CampaignID: strings.TrimSpace(c.Query("campaign_id")),
	})
	if err != nil {
		h.reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversions": out})
}

func (h Handlers) reportError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		fail(c, http.StatusBadRequest, "invalid range", "")
		return
	}
	logger.FromGin(c).Error("report failed", "err", err)
	fail(c, http.StatusInternalServerError, "report failed", err.Error())
}
