package httpapi

import (
	"errors"
	"net/http"

	"voice-platform/internal/auth"
	"voice-platform/internal/rbac"
	"voice-platform/internal/usage"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetUsage(c *gin.Context) {
	if h.Usage == nil {
		fail(c, http.StatusInternalServerError, "usage not configured", "usage not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	acct, err := h.Usage.GetAccount(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("usage lookup failed", "err", err)
		fail(c, http.StatusInternalServerError, "usage lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"usage":             acct,
		"unlimited":         acct.Unlimited(),
		"minutes_remaining": acct.Remaining(),
	})
}

type grantMinutesRequest struct {
	// TenantID targets another tenant; only super_admin may set it.
	TenantID string `json:"tenant_id,omitempty"`

	Minutes        int64  `json:"minutes"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

// GrantMinutes raises a tenant's minute quota.
// RBAC: owner or super_admin.
func (h Handlers) GrantMinutes(c *gin.Context) {
	if h.Usage == nil {
		fail(c, http.StatusInternalServerError, "usage not configured", "usage not configured")
		return
	}
	tenantID, ok := tenantFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	adminUserID, _ := auth.UserID(ctx)
	adminRole, _ := auth.Role(ctx)

	var req grantMinutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json", "")
		return
	}
	if req.TenantID != "" && req.TenantID != tenantID {
		if !rbac.IsSuperAdmin(adminRole) {
			fail(c, http.StatusForbidden, "forbidden", "")
			return
		}
		tenantID = req.TenantID
	}

	action, _, acct, err := h.Usage.GrantMinutes(ctx, tenantID, adminUserID, adminRole, usage.GrantRequest{
		Minutes:        req.Minutes,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if errors.Is(err, usage.ErrInvalidArgument) {
		fail(c, http.StatusBadRequest, "minutes, reason, idempotency_key required", "")
		return
	}
	if err != nil {
		logger.FromGin(c).Error("grant minutes failed", "err", err)
		fail(c, http.StatusInternalServerError, "grant failed", err.Error())
		return
	}

	if err := h.Audit.LogAdminAction(ctx, tenantID, adminUserID, adminRole, c.ClientIP(), "granted usage minutes", map[string]any{
		"action_id": action.ID,
		"minutes":   req.Minutes,
		"reason":    req.Reason,
	}); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "usage": acct})
}
