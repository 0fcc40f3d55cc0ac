package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/repository"
)

// Service records and lists tenant audit entries.
type Service struct {
	repo   repository.AuditRepository
	node   *snowflake.Node
	logger *zap.Logger
}

// NewService wires the audit service.
func NewService(repo repository.AuditRepository, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{repo: repo, node: node, logger: logger}
}

// Record appends an entry. Action is required; everything else is metadata.
func (s *Service) Record(ctx context.Context, tenantID, actorID, action, subject, detail string) (domain.AuditEntry, error) {
	if strings.TrimSpace(action) == "" {
		return domain.AuditEntry{}, fmt.Errorf("audit: action is required")
	}
	entry, err := s.repo.CreateEntry(ctx, domain.AuditEntry{
		ID:       s.node.Generate().Int64(),
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Subject:  subject,
		Detail:   detail,
	})
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit: record: %w", err)
	}
	return entry, nil
}

// List returns the most recent entries for a tenant.
func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error) {
	entries, err := s.repo.ListEntries(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return entries, nil
}
