package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/http/handler"
	httpmiddleware "github.com/casedeskhq/casedesk/internal/http/middleware"
	"github.com/casedeskhq/casedesk/internal/middleware"
	"github.com/casedeskhq/casedesk/internal/tenant"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	googleHandler *handler.GoogleHandler,
	inboundHandler *handler.InboundHandler,
	adminHandler *handler.AdminHandler,
	adminMiddleware *httpmiddleware.Admin,
	resolver *tenant.Resolver,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The callback carries its tenant inside the encrypted state parameter and
	// the webhook names its tenant in the path; neither uses host resolution.
	r.GET(handler.CallbackPath, googleHandler.Callback)
	r.POST("/webhooks/mailgun/inbound/:tenant", inboundHandler.Receive)

	api := r.Group("/api", httpmiddleware.Tenant(resolver), adminMiddleware.RequireAdmin)
	{
		google := api.Group("/integrations/google")
		{
			google.GET("/start", googleHandler.Start)
			google.GET("/status", googleHandler.Status)
			google.DELETE("", googleHandler.Disconnect)
		}

		api.PUT("/sheet-links", adminHandler.UpsertSheetLink)
		api.GET("/sheet-links", adminHandler.ListSheetLinks)
		api.GET("/inbox", adminHandler.ListMessages)
		api.GET("/audit", adminHandler.ListAudit)
	}

	return r
}
