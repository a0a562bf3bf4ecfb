package usage

import (
	"net/http"

	"voice-platform/internal/auth"
	"voice-platform/internal/rbac"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequireMinutesRemaining blocks call placement once a tenant has used its
// minute quota. A zero quota is unlimited.
//
// super_admin and the hidden support role bypass the check.
func RequireMinutesRemaining(svc AccountReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if rbac.IsSuperAdmin(role) || role == rbac.RoleSupport {
			c.Next()
			return
		}

		tenantID, err := auth.TenantID(c.Request.Context())
		if err != nil || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "tenant_id required"})
			return
		}

		acct, err := svc.GetAccount(c.Request.Context(), tenantID)
		if err != nil {
			logger.FromGin(c).Error("usage lookup failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "usage lookup failed"})
			return
		}
		if acct.Exhausted() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"ok": false, "error": "minute quota exhausted"})
			return
		}

		c.Next()
	}
}
