package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/outbound"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type placeCallRequest struct {
	AgentID       string `json:"agent_id"`
	PhoneNumber   string `json:"phone_number"`
	ContactName   string `json:"contact_name"`
	CustomMessage string `json:"custom_message,omitempty"`
	CampaignID    string `json:"campaign_id,omitempty"`
}

// PlaceCall starts an outbound call for the caller's tenant.
func (h Handlers) PlaceCall(c *gin.Context) {
	if h.Outbound == nil {
		fail(c, http.StatusInternalServerError, "calls not configured", "calls not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json", "")
		return
	}

	res, err := h.Outbound.PlaceCall(c.Request.Context(), outbound.PlaceCallRequest{
		TenantID:      tenantID,
		AgentRef:      req.AgentID,
		PhoneNumber:   req.PhoneNumber,
		ContactName:   req.ContactName,
		CustomMessage: req.CustomMessage,
		CampaignID:    req.CampaignID,
	})
	if err != nil {
		h.placeCallError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": "Call initiated", "call": res})
}

func (h Handlers) placeCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, outbound.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "agent_id and phone_number are required", "")
	case errors.Is(err, outbound.ErrAgentNotFound):
		fail(c, http.StatusNotFound, "Agent not found", "")
	case errors.Is(err, outbound.ErrTooManyPlacements):
		fail(c, http.StatusTooManyRequests, "Too many calls in progress", "")
	case errors.Is(err, outbound.ErrPlacementFailed):
		detail := err.Error()
		var pe *telephony.PlacementError
		if errors.As(err, &pe) && pe.Message != "" {
			detail = pe.Message
		}
		fail(c, http.StatusBadGateway, "Failed to initiate call", detail)
	default:
		logger.FromGin(c).Error("place call failed", "err", err)
		fail(c, http.StatusInternalServerError, "Failed to initiate call", err.Error())
	}
}

// ListCalls returns the tenant's calls, newest first.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		fail(c, http.StatusInternalServerError, "calls not configured", "calls not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}

	f := calls.ListFilter{
		CampaignID: strings.TrimSpace(c.Query("campaign_id")),
		Status:     calls.CallStatus(strings.TrimSpace(c.Query("status"))),
	}
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, ok := parseRange(c, time.Now().UTC())
		if !ok {
			return
		}
		f.From, f.To = from, to
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		f.Limit = n
	}

	rows, err := h.Calls.List(c.Request.Context(), tenantID, f)
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "err", err)
		fail(c, http.StatusInternalServerError, "call lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "calls": rows})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		fail(c, http.StatusInternalServerError, "calls not configured", "calls not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), tenantID, c.Param("call_id"))
	if errors.Is(err, calls.ErrNotFound) {
		fail(c, http.StatusNotFound, "Call not found", "")
		return
	}
	if err != nil {
		logger.FromGin(c).Error("get call failed", "err", err)
		fail(c, http.StatusInternalServerError, "call lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "call": call})
}
