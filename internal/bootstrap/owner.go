package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/repository"
)

const insertMembershipSQL = `INSERT INTO memberships (tenant_id, user_id, role, is_active, created_at, updated_at)
VALUES ($1, $2, $3, true, now(), now())`

// EnsureOwner seeds an owner membership for dev/e2e if missing. Skipped when
// the bootstrap tenant/user pair is not configured.
func EnsureOwner(lc fx.Lifecycle, cfg config.Config, memberships repository.MembershipRepository, tenants repository.TenantRepository, pool *pgxpool.Pool, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureOwner(ctx, cfg, memberships, tenants, pool, logger)
		},
	})
}

func ensureOwner(ctx context.Context, cfg config.Config, memberships repository.MembershipRepository, tenants repository.TenantRepository, pool *pgxpool.Pool, logger *zap.Logger) error {
	if cfg.DefaultTenantID == "" || cfg.BootstrapOwnerUserID == "" {
		logger.Debug("owner bootstrap skipped, not configured")
		return nil
	}

	if _, err := tenants.GetTenant(ctx, cfg.DefaultTenantID); err != nil {
		return fmt.Errorf("bootstrap tenant lookup: %w", err)
	}

	if _, err := memberships.GetMembership(ctx, cfg.DefaultTenantID, cfg.BootstrapOwnerUserID); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap membership lookup: %w", err)
	}

	if _, err := pool.Exec(ctx, insertMembershipSQL,
		cfg.DefaultTenantID, cfg.BootstrapOwnerUserID, string(domain.RoleOwner)); err != nil {
		return fmt.Errorf("bootstrap insert membership: %w", err)
	}

	logger.Info("seeded owner membership",
		zap.String("tenant_id", cfg.DefaultTenantID),
		zap.String("user_id", cfg.BootstrapOwnerUserID))
	return nil
}
