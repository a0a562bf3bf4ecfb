package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/calls"
	"voice-platform/internal/outbound"
	"voice-platform/internal/rbac"
	"voice-platform/internal/reconcile"
	"voice-platform/internal/reporting"
	"voice-platform/internal/usage"

	"github.com/gin-gonic/gin"
)

// CallPlacer is the outbound orchestrator as seen by the HTTP layer.
type CallPlacer interface {
	PlaceCall(ctx context.Context, req outbound.PlaceCallRequest) (outbound.PlaceCallResult, error)
}

// CallbackHandler applies provider webhook deliveries.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, raw []byte, signature string) (reconcile.Result, error)
}

// UsageService reads and adjusts tenant minute accounts.
type UsageService interface {
	GetAccount(ctx context.Context, tenantID string) (usage.Account, error)
	GrantMinutes(ctx context.Context, tenantID, adminUserID, adminRole string, req usage.GrantRequest) (usage.AdminUsageAction, usage.LedgerEntry, usage.Account, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Calls      calls.Repository
	Outbound   CallPlacer
	Reconciler CallbackHandler
	Usage      UsageService
	Reporting  *reporting.Service
	Audit      *audit.Service

	// AllowLogin enables the credential-less token endpoint. Never set in production.
	AllowLogin bool
}

func fail(c *gin.Context, status int, message, detail string) {
	body := gin.H{"ok": false, "message": message}
	if detail != "" {
		body["error"] = detail
	}
	c.AbortWithStatusJSON(status, body)
}

func tenantFrom(c *gin.Context) (string, bool) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		fail(c, http.StatusUnauthorized, "tenant_id required", "")
		return "", false
	}
	return tenantID, true
}

// parseRange reads from/to query params as RFC 3339. Missing bounds default
// to the last 30 days ending now.
func parseRange(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	to := now
	from := now.AddDate(0, 0, -30)
	if v := strings.TrimSpace(c.Query("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, http.StatusBadRequest, "from must be RFC 3339", "")
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, http.StatusBadRequest, "to must be RFC 3339", "")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair without checking credentials. Development only.
func (h Handlers) Login(c *gin.Context) {
	if !h.AllowLogin {
		fail(c, http.StatusNotFound, "not found", "")
		return
	}
	if h.Auth == nil {
		fail(c, http.StatusInternalServerError, "auth not configured", "auth not configured")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json", "")
		return
	}
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		fail(c, http.StatusBadRequest, "user_id, tenant_id, role required", "")
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token issuance failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// RequireTenantAndAnyRole bundles the tenant and role checks used by most /v1 groups.
func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
