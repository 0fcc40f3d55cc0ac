package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	inboundservice "github.com/casedeskhq/casedesk/internal/service/inbound"
	"github.com/casedeskhq/casedesk/internal/tenant"
)

// InboundHandler receives mail-provider webhook deliveries.
type InboundHandler struct {
	Service  inboundservice.Service
	Resolver *tenant.Resolver
	Logger   *zap.Logger
}

// NewInboundHandler wires the handler.
func NewInboundHandler(service inboundservice.Service, resolver *tenant.Resolver, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{Service: service, Resolver: resolver, Logger: logger}
}

// Receive authenticates and stores an inbound email event. Mailgun posts
// form-encoded fields; the signature triple is verified before the payload is
// processed, and an unverifiable delivery is rejected outright.
func (h *InboundHandler) Receive(c *gin.Context) {
	tenantCtx, err := h.Resolver.ResolveBySlug(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_tenant"})
		return
	}

	ev := inboundservice.Event{
		Proof: inboundservice.Proof{
			Timestamp: c.PostForm("timestamp"),
			Token:     c.PostForm("token"),
			Signature: c.PostForm("signature"),
		},
		MessageID: c.PostForm("Message-Id"),
		Sender:    c.PostForm("sender"),
		Recipient: c.PostForm("recipient"),
		Subject:   c.PostForm("subject"),
		BodyPlain: c.PostForm("body-plain"),
	}

	msg, err := h.Service.HandleEvent(c.Request.Context(), tenantCtx.Tenant.ID, ev)
	if err != nil {
		switch {
		case errors.Is(err, inboundservice.ErrDuplicateEvent):
			// Acknowledge redeliveries so the provider stops retrying.
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		case errors.Is(err, inboundservice.ErrBadSignature), errors.Is(err, inboundservice.ErrStaleTimestamp):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		case errors.Is(err, inboundservice.ErrSigningKeyMissing):
			h.Logger.Error("webhook signing key not configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		default:
			h.Logger.Error("inbound event processing failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stored", "message_id": msg.ID})
}
