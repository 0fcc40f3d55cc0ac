package inbound

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/repository"
)

var (
	// ErrSigningKeyMissing signals missing webhook signing-key configuration.
	// Distinct from a verification failure: this is a deployment fault.
	ErrSigningKeyMissing = errors.New("inbound: signing key not configured")
	// ErrBadSignature signals a proof that failed HMAC verification.
	ErrBadSignature = errors.New("inbound: bad signature")
	// ErrStaleTimestamp signals a proof outside the freshness window.
	ErrStaleTimestamp = errors.New("inbound: stale timestamp")
	// ErrDuplicateEvent signals a redelivery of an already-processed event.
	ErrDuplicateEvent = errors.New("inbound: duplicate event")
)

// Proof is the signature triple Mailgun attaches to each delivery.
type Proof struct {
	Timestamp string
	Token     string
	Signature string
}

// Event is the subset of a Mailgun inbound-email event this service stores.
type Event struct {
	Proof     Proof
	MessageID string
	Sender    string
	Recipient string
	Subject   string
	BodyPlain string
}

// VerifySignature recomputes HMAC-SHA256(key, timestamp||token) and compares
// it to the supplied hex signature in constant time. A malformed signature is
// indistinguishable from a wrong one: both return false, never an error.
func VerifySignature(timestamp, token, signatureHex, signingKey string) (bool, error) {
	if strings.TrimSpace(signingKey) == "" {
		return false, ErrSigningKeyMissing
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(token))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(provided) != len(expected) {
		return false, nil
	}
	// hmac.Equal is constant-time; never short-circuit on the first byte.
	return hmac.Equal(expected, provided), nil
}

// Service authenticates webhook deliveries and persists inbound email.
type Service interface {
	HandleEvent(ctx context.Context, tenantID string, ev Event) (*domain.InboundMessage, error)
}

type service struct {
	messages repository.InboundMessageRepository
	dedupe   repository.EventDedupeStore
	node     *snowflake.Node
	cfg      config.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the inbound webhook service.
func NewService(
	messages repository.InboundMessageRepository,
	dedupe repository.EventDedupeStore,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) Service {
	return &service{
		messages: messages,
		dedupe:   dedupe,
		node:     node,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleEvent verifies the proof, rejects stale or replayed deliveries, and
// persists the message. Verification runs before any state is touched.
func (s *service) HandleEvent(ctx context.Context, tenantID string, ev Event) (*domain.InboundMessage, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(ev.Proof.Timestamp), 10, 64)
	if err != nil {
		return nil, ErrBadSignature
	}
	if skew := s.now().Sub(time.Unix(ts, 0)); skew > s.cfg.WebhookSkew || skew < -s.cfg.WebhookSkew {
		return nil, ErrStaleTimestamp
	}

	ok, err := VerifySignature(ev.Proof.Timestamp, ev.Proof.Token, ev.Proof.Signature, s.cfg.MailgunSigningKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("webhook signature verification failed",
			zap.String("tenant_id", tenantID))
		return nil, ErrBadSignature
	}

	// The dedupe window matches the freshness window: a token can only replay
	// while its timestamp is still fresh, so the claim TTL covers that span.
	claimed, err := s.dedupe.Claim(ctx, ev.Proof.Token, 2*s.cfg.WebhookSkew)
	if err != nil {
		return nil, fmt.Errorf("inbound: dedupe claim: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateEvent
	}

	msg := domain.InboundMessage{
		ID:         s.node.Generate().Int64(),
		TenantID:   tenantID,
		ProviderID: ev.MessageID,
		Sender:     ev.Sender,
		Recipient:  ev.Recipient,
		Subject:    ev.Subject,
		BodyPlain:  ev.BodyPlain,
		ReceivedAt: time.Unix(ts, 0).UTC(),
	}
	created, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("inbound: persist message: %w", err)
	}
	return &created, nil
}
