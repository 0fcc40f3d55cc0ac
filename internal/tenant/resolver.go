package tenant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/repository"
)

// Context stores resolved tenant metadata used throughout the request lifecycle.
type Context struct {
	Tenant domain.Tenant
}

// Resolver loads tenant metadata from the tenant repository.
type Resolver struct {
	repo repository.TenantRepository
}

// NewResolver creates a tenant resolver.
func NewResolver(repo repository.TenantRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve loads tenant information from a host header.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Context, error) {
	cleaned := strings.ToLower(strings.TrimSpace(host))
	if cleaned == "" {
		zap.L().Warn("tenant resolver received empty host")
		return nil, fmt.Errorf("resolve tenant: empty host")
	}

	domainRow, err := r.repo.GetDomainByHost(ctx, cleaned)
	if err != nil {
		zap.L().Error("failed to resolve domain", zap.String("host", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve domain: %w", err)
	}

	tenantRow, err := r.repo.GetTenant(ctx, domainRow.TenantID)
	if err != nil {
		zap.L().Error("failed to resolve tenant", zap.String("host", cleaned), zap.String("tenant_id", domainRow.TenantID), zap.Error(err))
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	zap.L().Debug("tenant context resolved", zap.String("host", cleaned), zap.String("tenant_id", tenantRow.ID))
	return &Context{Tenant: tenantRow}, nil
}

// ResolveBySlug loads tenant information using the tenant slug header.
func (r *Resolver) ResolveBySlug(ctx context.Context, slug string) (*Context, error) {
	cleaned := strings.ToLower(strings.TrimSpace(slug))
	if cleaned == "" {
		zap.L().Warn("tenant resolver received empty slug")
		return nil, fmt.Errorf("resolve tenant: empty slug")
	}

	tenantRow, err := r.repo.GetTenantBySlug(ctx, cleaned)
	if err != nil {
		zap.L().Error("failed to resolve tenant by slug", zap.String("slug", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve tenant by slug: %w", err)
	}

	return &Context{Tenant: tenantRow}, nil
}
