package main

import (
	"context"
	"net/http"

	"voice-platform/internal/httpapi"
	"voice-platform/internal/rbac"
	"voice-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW, quotaMW gin.HandlerFunc, ready func(context.Context) error) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Provider webhooks authenticate by HMAC signature, not bearer token.
	r.POST("/webhooks/elevenlabs", h.ElevenLabsWebhook)

	v1 := r.Group("/v1")

	// Development-only token issuance; the handler 404s when disabled.
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("")
	protected.Use(authMW)

	callsGroup := protected.Group("/calls")
	callsGroup.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleStaff)...)
	{
		callsGroup.POST("", quotaMW, h.PlaceCall)
		callsGroup.GET("", h.ListCalls)
		callsGroup.GET("/:call_id", h.GetCall)
	}

	usageGroup := protected.Group("/usage")
	usageGroup.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleManager)...)
	{
		usageGroup.GET("", h.GetUsage)
	}

	reports := protected.Group("/reports")
	reports.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleManager)...)
	{
		reports.GET("/calls-summary", h.CallsSummary)
		reports.GET("/conversions", h.Conversions)
	}

	// ADMIN routes
	// Only owner/super_admin can access admin endpoints by default.
	// The hidden support role is not included.
	admin := protected.Group("/admin")
	admin.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner)...)
	{
		admin.POST("/usage/grant", h.GrantMinutes)
	}
}
