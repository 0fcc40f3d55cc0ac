// Package guard authorizes privileged integration operations. Every privileged
// handler runs the guard before touching state; any failure rejects the request.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/jwt"
	"github.com/casedeskhq/casedesk/internal/repository"
)

var (
	// ErrUnauthenticated signals a missing or invalid session.
	ErrUnauthenticated = errors.New("guard: unauthenticated")
	// ErrForbidden signals a valid session without sufficient privilege.
	ErrForbidden = errors.New("guard: forbidden")
	// ErrDependency signals the membership store was unreachable or erroring.
	ErrDependency = errors.New("guard: dependency failure")
)

// SessionVerifier resolves a session token to its claims.
type SessionVerifier interface {
	Verify(token string) (*jwt.SessionClaims, error)
}

// Actor is the authenticated, authorized caller of a privileged operation.
type Actor struct {
	UserID     string
	Email      string
	Membership domain.Membership
}

// Guard resolves sessions and enforces the privileged role set.
type Guard struct {
	sessions    SessionVerifier
	memberships repository.MembershipRepository
	logger      *zap.Logger
}

// New wires a guard.
func New(sessions SessionVerifier, memberships repository.MembershipRepository, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.L()
	}
	return &Guard{sessions: sessions, memberships: memberships, logger: logger}
}

// RequireAdmin walks session → membership → role and returns the actor on
// success. Ordering matters: an absent session is reported before membership
// state so unauthenticated callers learn nothing about the tenant.
func (g *Guard) RequireAdmin(ctx context.Context, tenantID, sessionToken string) (*Actor, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := g.sessions.Verify(sessionToken)
	if err != nil {
		g.logger.Debug("session verification failed", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	membership, err := g.memberships.GetMembership(ctx, tenantID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		g.logger.Error("membership lookup failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	if !membership.IsActive || !membership.Role.Privileged() {
		return nil, ErrForbidden
	}

	return &Actor{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Membership: membership,
	}, nil
}
