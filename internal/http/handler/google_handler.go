package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/envelope"
	httpmiddleware "github.com/casedeskhq/casedesk/internal/http/middleware"
	googleservice "github.com/casedeskhq/casedesk/internal/service/google"
)

// GoogleHandler exposes the Google OAuth flow and connection lifecycle.
type GoogleHandler struct {
	Service googleservice.Service
	Cfg     config.Config
	Logger  *zap.Logger
}

// NewGoogleHandler wires the handler.
func NewGoogleHandler(service googleservice.Service, cfg config.Config, logger *zap.Logger) *GoogleHandler {
	return &GoogleHandler{Service: service, Cfg: cfg, Logger: logger}
}

// Start begins the authorization flow for the resolved tenant. Runs behind the
// admin guard; the encrypted state carries the tenant across the redirect.
func (h *GoogleHandler) Start(c *gin.Context) {
	tenantCtx, ok := httpmiddleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_tenant"})
		return
	}

	returnTo := sanitizeReturnTo(c.Query("return_to"))
	authURL, err := h.Service.BuildAuthorizationURL(tenantCtx.Tenant.ID, returnTo, RedirectURI(h.Cfg, c.Request))
	if err != nil {
		h.Logger.Error("failed to build authorization url",
			zap.String("tenant_id", tenantCtx.Tenant.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback consumes the provider redirect. Failures surface as a redirect-flow
// error back to the app rather than a bare API error, since the caller is a
// browser mid-flow.
func (h *GoogleHandler) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		c.Redirect(http.StatusFound, errorRedirect(providerErr))
		return
	}

	actorID := ""
	if actor, ok := httpmiddleware.GetActor(c); ok {
		actorID = actor.UserID
	}

	result, err := h.Service.HandleCallback(c.Request.Context(), googleservice.CallbackInput{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		RedirectURI: RedirectURI(h.Cfg, c.Request),
		ActorID:     actorID,
	})
	if err != nil {
		h.Logger.Warn("google callback failed", zap.Error(err))
		c.Redirect(http.StatusFound, errorRedirect(callbackErrorCode(err)))
		return
	}

	c.Redirect(http.StatusFound, sanitizeReturnTo(result.ReturnTo))
}

// Status reports the tenant's connection without exposing token material.
func (h *GoogleHandler) Status(c *gin.Context) {
	tenantCtx, ok := httpmiddleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_tenant"})
		return
	}

	status, err := h.Service.Status(c.Request.Context(), tenantCtx.Tenant.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":        status.Connected,
		"account_email":    status.AccountEmail,
		"scopes":           status.Scopes,
		"token_expires_at": status.TokenExpiresAt,
	})
}

// Disconnect removes the tenant's Google connection.
func (h *GoogleHandler) Disconnect(c *gin.Context) {
	tenantCtx, ok := httpmiddleware.GetTenantContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_tenant"})
		return
	}
	actor, _ := httpmiddleware.GetActor(c)
	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}

	if err := h.Service.Disconnect(c.Request.Context(), tenantCtx.Tenant.ID, actorID); err != nil {
		if errors.Is(err, googleservice.ErrNotConnected) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_connected"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, envelope.ErrMalformedToken):
		return "malformed_state"
	case errors.Is(err, envelope.ErrAuthentication):
		return "invalid_state"
	case errors.Is(err, envelope.ErrPayloadFormat):
		return "invalid_state"
	case errors.Is(err, googleservice.ErrStateExpired):
		return "state_expired"
	default:
		return "exchange_failed"
	}
}

func errorRedirect(code string) string {
	return "/settings/integrations?google=error&reason=" + url.QueryEscape(code)
}

// sanitizeReturnTo keeps redirects inside the app: relative paths only.
func sanitizeReturnTo(returnTo string) string {
	returnTo = strings.TrimSpace(returnTo)
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return "/"
	}
	return returnTo
}
