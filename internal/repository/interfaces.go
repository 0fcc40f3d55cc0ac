package repository

import (
	"context"
	"time"

	"github.com/casedeskhq/casedesk/internal/domain"
)

// TenantRepository exposes tenant-level queries.
type TenantRepository interface {
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	GetDomainByHost(ctx context.Context, host string) (domain.TenantDomain, error)
}

// MembershipRepository reads the membership row for a (tenant, user) pair.
type MembershipRepository interface {
	GetMembership(ctx context.Context, tenantID, userID string) (domain.Membership, error)
}

// ConnectionRepository persists Google OAuth grants per tenant.
type ConnectionRepository interface {
	UpsertConnection(ctx context.Context, conn domain.GoogleConnection) (domain.GoogleConnection, error)
	GetConnection(ctx context.Context, tenantID string) (domain.GoogleConnection, error)
	DeleteConnection(ctx context.Context, tenantID string) error
}

// SheetLinkRepository manages spreadsheet export targets.
type SheetLinkRepository interface {
	UpsertSheetLink(ctx context.Context, link domain.SheetLink) (domain.SheetLink, error)
	ListSheetLinks(ctx context.Context, tenantID string) ([]domain.SheetLink, error)
}

// InboundMessageRepository persists webhook-delivered email.
type InboundMessageRepository interface {
	CreateMessage(ctx context.Context, msg domain.InboundMessage) (domain.InboundMessage, error)
	ListMessages(ctx context.Context, tenantID string, limit int) ([]domain.InboundMessage, error)
}

// EventDedupeStore claims webhook event tokens exactly once per TTL window.
type EventDedupeStore interface {
	Claim(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// AuditRepository appends and lists audit entries.
type AuditRepository interface {
	CreateEntry(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error)
}
