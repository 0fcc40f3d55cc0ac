package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	googleadapter "github.com/casedeskhq/casedesk/internal/adapter/google"
	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/envelope"
	"github.com/casedeskhq/casedesk/internal/repository"
)

// Scopes is the fixed scope list requested from Google: identity, file-scoped
// Drive storage, Sheets, and Apps Script execution.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/script.projects",
}

var (
	// ErrStateExpired signals a state token older than the configured max age.
	ErrStateExpired = errors.New("google: state expired")
	// ErrNotConnected signals that the tenant has no Google connection.
	ErrNotConnected = errors.New("google: not connected")
)

// StatePayload crosses the external redirect inside the encrypted state
// parameter. Field names are part of the wire format.
type StatePayload struct {
	TenantID   string `json:"tenantId"`
	ReturnTo   string `json:"returnTo"`
	IssuedAtMs int64  `json:"issuedAtMs"`
}

// CallbackInput captures the provider's callback query parameters.
type CallbackInput struct {
	Code        string
	State       string
	RedirectURI string
	ActorID     string
}

// CallbackResult carries the recovered tenant context back to the handler.
type CallbackResult struct {
	TenantID string
	ReturnTo string
}

// ConnectionStatus summarizes a tenant's Google grant without exposing tokens.
type ConnectionStatus struct {
	Connected      bool
	AccountEmail   string
	Scopes         []string
	TokenExpiresAt time.Time
}

// Service orchestrates the encrypted-state Google OAuth flow and the
// connection lifecycle around it.
type Service interface {
	BuildAuthorizationURL(tenantID, returnTo, redirectURI string) (string, error)
	ConsumeCallbackState(stateToken string) (*StatePayload, error)
	HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error)
	Status(ctx context.Context, tenantID string) (*ConnectionStatus, error)
	Disconnect(ctx context.Context, tenantID, actorID string) error
}

type service struct {
	codec       *envelope.Codec
	exchanger   googleadapter.Exchanger
	connections repository.ConnectionRepository
	audit       repository.AuditRepository
	node        *snowflake.Node
	cfg         config.Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewService wires the Google integration service.
func NewService(
	codec *envelope.Codec,
	exchanger googleadapter.Exchanger,
	connections repository.ConnectionRepository,
	audit repository.AuditRepository,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) Service {
	return &service{
		codec:       codec,
		exchanger:   exchanger,
		connections: connections,
		audit:       audit,
		node:        node,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// BuildAuthorizationURL issues an encrypted state token and embeds it in the
// Google authorization URL. Pure apart from IV generation; no I/O.
func (s *service) BuildAuthorizationURL(tenantID, returnTo, redirectURI string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("google: tenant id is required")
	}
	if strings.TrimSpace(returnTo) == "" {
		returnTo = "/"
	}

	state, err := s.codec.Encrypt(StatePayload{
		TenantID:   tenantID,
		ReturnTo:   returnTo,
		IssuedAtMs: s.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("google: seal state: %w", err)
	}

	return s.exchanger.AuthCodeURL(state, redirectURI), nil
}

// ConsumeCallbackState decrypts and validates the state token. Codec errors
// propagate unchanged so callers can tell tampering from malformed input.
func (s *service) ConsumeCallbackState(stateToken string) (*StatePayload, error) {
	var payload StatePayload
	if err := s.codec.Decrypt(stateToken, &payload); err != nil {
		if errors.Is(err, envelope.ErrAuthentication) {
			s.logger.Warn("state token failed authentication, possible tampering")
		}
		return nil, err
	}

	issued := time.UnixMilli(payload.IssuedAtMs)
	if age := s.now().Sub(issued); age < 0 || age > s.cfg.StateMaxAge {
		return nil, ErrStateExpired
	}
	if strings.TrimSpace(payload.TenantID) == "" {
		return nil, envelope.ErrPayloadFormat
	}
	return &payload, nil
}

// HandleCallback consumes the state, exchanges the code, and persists the
// grant with both tokens envelope-encrypted at rest.
func (s *service) HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	payload, err := s.ConsumeCallbackState(in.State)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Code) == "" {
		return nil, fmt.Errorf("google: authorization code is required")
	}

	token, err := s.exchanger.Exchange(ctx, in.Code, in.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	accountEmail, err := s.exchanger.FetchAccountEmail(ctx, token.AccessToken)
	if err != nil {
		s.logger.Warn("userinfo lookup failed", zap.String("tenant_id", payload.TenantID), zap.Error(err))
		accountEmail = ""
	}

	encryptedAccess, err := s.codec.Encrypt(map[string]string{"token": token.AccessToken})
	if err != nil {
		return nil, fmt.Errorf("google: seal access token: %w", err)
	}
	encryptedRefresh := ""
	if token.RefreshToken != "" {
		encryptedRefresh, err = s.codec.Encrypt(map[string]string{"token": token.RefreshToken})
		if err != nil {
			return nil, fmt.Errorf("google: seal refresh token: %w", err)
		}
	}

	conn := domain.GoogleConnection{
		ID:                    s.node.Generate().Int64(),
		TenantID:              payload.TenantID,
		AccountEmail:          accountEmail,
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		Scopes:                Scopes,
		TokenExpiresAt:        token.Expiry,
		ConnectedBy:           in.ActorID,
	}
	if _, err := s.connections.UpsertConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("google: persist connection: %w", err)
	}

	s.recordAudit(ctx, payload.TenantID, in.ActorID, "google.connected", accountEmail)

	return &CallbackResult{TenantID: payload.TenantID, ReturnTo: payload.ReturnTo}, nil
}

func (s *service) Status(ctx context.Context, tenantID string) (*ConnectionStatus, error) {
	conn, err := s.connections.GetConnection(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ConnectionStatus{Connected: false}, nil
		}
		return nil, fmt.Errorf("google: load connection: %w", err)
	}
	return &ConnectionStatus{
		Connected:      true,
		AccountEmail:   conn.AccountEmail,
		Scopes:         conn.Scopes,
		TokenExpiresAt: conn.TokenExpiresAt,
	}, nil
}

func (s *service) Disconnect(ctx context.Context, tenantID, actorID string) error {
	if err := s.connections.DeleteConnection(ctx, tenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotConnected
		}
		return fmt.Errorf("google: delete connection: %w", err)
	}
	s.recordAudit(ctx, tenantID, actorID, "google.disconnected", "")
	return nil
}

func (s *service) recordAudit(ctx context.Context, tenantID, actorID, action, subject string) {
	_, err := s.audit.CreateEntry(ctx, domain.AuditEntry{
		ID:       s.node.Generate().Int64(),
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Subject:  subject,
	})
	if err != nil {
		s.logger.Warn("audit write failed",
			zap.String("tenant_id", tenantID),
			zap.String("action", action),
			zap.Error(err))
	}
}
