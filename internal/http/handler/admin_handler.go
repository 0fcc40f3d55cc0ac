package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/domain"
	httpmiddleware "github.com/casedeskhq/casedesk/internal/http/middleware"
	"github.com/casedeskhq/casedesk/internal/repository"
	auditservice "github.com/casedeskhq/casedesk/internal/service/audit"
)

// AdminHandler exposes the thin, guard-protected integration CRUD endpoints:
// sheet links, the inbound mailbox, and the audit log.
type AdminHandler struct {
	Sheets   repository.SheetLinkRepository
	Messages repository.InboundMessageRepository
	Audit    *auditservice.Service
	Node     *snowflake.Node
	Logger   *zap.Logger
}

// NewAdminHandler wires the handler.
func NewAdminHandler(
	sheets repository.SheetLinkRepository,
	messages repository.InboundMessageRepository,
	audit *auditservice.Service,
	node *snowflake.Node,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{Sheets: sheets, Messages: messages, Audit: audit, Node: node, Logger: logger}
}

type sheetLinkRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" binding:"required"`
	SheetName     string `json:"sheet_name"`
	Description   string `json:"description"`
}

// UpsertSheetLink creates or updates a spreadsheet export target.
func (h *AdminHandler) UpsertSheetLink(c *gin.Context) {
	tenantCtx, actor, ok := adminContext(c)
	if !ok {
		return
	}

	var req sheetLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "spreadsheet_id is required."})
		return
	}

	link, err := h.Sheets.UpsertSheetLink(c.Request.Context(), domain.SheetLink{
		ID:            h.Node.Generate().Int64(),
		TenantID:      tenantCtx,
		SpreadsheetID: strings.TrimSpace(req.SpreadsheetID),
		SheetName:     strings.TrimSpace(req.SheetName),
		Description:   strings.TrimSpace(req.Description),
		CreatedBy:     actor,
	})
	if err != nil {
		h.Logger.Error("sheet link upsert failed", zap.String("tenant_id", tenantCtx), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}

	if _, err := h.Audit.Record(c.Request.Context(), tenantCtx, actor, "sheets.link_saved", link.SpreadsheetID, ""); err != nil {
		h.Logger.Warn("audit write failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"id": strconv.FormatInt(link.ID, 10), "spreadsheet_id": link.SpreadsheetID})
}

// ListSheetLinks returns the tenant's export targets.
func (h *AdminHandler) ListSheetLinks(c *gin.Context) {
	tenantCtx, _, ok := adminContext(c)
	if !ok {
		return
	}

	links, err := h.Sheets.ListSheetLinks(c.Request.Context(), tenantCtx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sheet_links": links})
}

// ListMessages returns the tenant's inbound mailbox.
func (h *AdminHandler) ListMessages(c *gin.Context) {
	tenantCtx, _, ok := adminContext(c)
	if !ok {
		return
	}

	messages, err := h.Messages.ListMessages(c.Request.Context(), tenantCtx, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// ListAudit returns the tenant's recent audit entries.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	tenantCtx, _, ok := adminContext(c)
	if !ok {
		return
	}

	entries, err := h.Audit.List(c.Request.Context(), tenantCtx, queryLimit(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "dependency_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func adminContext(c *gin.Context) (tenantID, actorID string, ok bool) {
	tenantCtx, found := httpmiddleware.GetTenantContext(c)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_tenant"})
		return "", "", false
	}
	actor, found := httpmiddleware.GetActor(c)
	if !found {
		// The guard middleware should have run; treat its absence as a
		// misconfiguration, never as permission.
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return "", "", false
	}
	return tenantCtx.Tenant.ID, actor.UserID, true
}

func queryLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}
