package inbound

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/domain"
)

func sign(key, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const key = "signing-key"
	ts := "1735689600"
	token := "abc123"
	sig := sign(key, ts, token)

	ok, err := VerifySignature(ts, token, sig, key)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifySignature("1735689601", token, sig, key)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = VerifySignature(ts, "other-token", sig, key)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = VerifySignature(ts, token, sig, "wrong-key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifySignature_MalformedInputs(t *testing.T) {
	const key = "signing-key"
	for _, sig := range []string{
		"",
		"not hex at all",
		"zz" + sign(key, "1", "t")[2:],
		"abcd", // valid hex, wrong length
	} {
		ok, err := VerifySignature("1", "t", sig, key)
		require.NoError(t, err, "signature %q", sig)
		require.False(t, ok, "signature %q", sig)
	}
}

func TestVerifySignature_MissingKey(t *testing.T) {
	ok, err := VerifySignature("1", "t", "aa", "")
	require.ErrorIs(t, err, ErrSigningKeyMissing)
	require.False(t, ok)
}

func TestHandleEvent_PersistsVerifiedEvent(t *testing.T) {
	h := newInboundTestHarness(t)
	ctx := context.Background()

	ev := h.signedEvent("msg-1", "tok-1")
	msg, err := h.service.HandleEvent(ctx, "org_42", ev)
	require.NoError(t, err)
	require.Equal(t, "org_42", msg.TenantID)
	require.Equal(t, "msg-1", msg.ProviderID)
	require.Len(t, h.messages.msgs, 1)
}

func TestHandleEvent_RejectsBadSignature(t *testing.T) {
	h := newInboundTestHarness(t)

	ev := h.signedEvent("msg-1", "tok-1")
	ev.Proof.Signature = sign("wrong-key", ev.Proof.Timestamp, ev.Proof.Token)

	_, err := h.service.HandleEvent(context.Background(), "org_42", ev)
	require.ErrorIs(t, err, ErrBadSignature)
	require.Empty(t, h.messages.msgs)
}

func TestHandleEvent_RejectsStaleTimestamp(t *testing.T) {
	h := newInboundTestHarness(t)

	old := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	ev := Event{
		Proof: Proof{
			Timestamp: old,
			Token:     "tok-1",
			Signature: sign(h.cfg.MailgunSigningKey, old, "tok-1"),
		},
	}

	_, err := h.service.HandleEvent(context.Background(), "org_42", ev)
	require.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestHandleEvent_RejectsNonNumericTimestamp(t *testing.T) {
	h := newInboundTestHarness(t)

	ev := Event{Proof: Proof{Timestamp: "yesterday", Token: "tok", Signature: "aa"}}
	_, err := h.service.HandleEvent(context.Background(), "org_42", ev)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestHandleEvent_DeduplicatesRedelivery(t *testing.T) {
	h := newInboundTestHarness(t)
	ctx := context.Background()

	ev := h.signedEvent("msg-1", "tok-1")
	_, err := h.service.HandleEvent(ctx, "org_42", ev)
	require.NoError(t, err)

	_, err = h.service.HandleEvent(ctx, "org_42", ev)
	require.ErrorIs(t, err, ErrDuplicateEvent)
	require.Len(t, h.messages.msgs, 1)
}

// ---- Test harness and fakes ----

type inboundTestHarness struct {
	service  Service
	cfg      config.Config
	messages *memoryMessageRepo
	dedupe   *memoryDedupeStore
}

func newInboundTestHarness(t *testing.T) *inboundTestHarness {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		MailgunSigningKey: "test-signing-key",
		WebhookSkew:       5 * time.Minute,
	}
	messages := &memoryMessageRepo{}
	dedupe := newMemoryDedupeStore()

	return &inboundTestHarness{
		service:  NewService(messages, dedupe, node, cfg, zap.NewNop()),
		cfg:      cfg,
		messages: messages,
		dedupe:   dedupe,
	}
}

func (h *inboundTestHarness) signedEvent(messageID, token string) Event {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return Event{
		Proof: Proof{
			Timestamp: ts,
			Token:     token,
			Signature: sign(h.cfg.MailgunSigningKey, ts, token),
		},
		MessageID: messageID,
		Sender:    "customer@example.com",
		Recipient: "support@org42.casedesk.dev",
		Subject:   "Printer on fire",
		BodyPlain: "It is actually on fire.",
	}
}

type memoryMessageRepo struct {
	mu   sync.Mutex
	msgs []domain.InboundMessage
}

func (m *memoryMessageRepo) CreateMessage(_ context.Context, msg domain.InboundMessage) (domain.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return msg, nil
}

func (m *memoryMessageRepo) ListMessages(_ context.Context, tenantID string, _ int) ([]domain.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.InboundMessage
	for _, msg := range m.msgs {
		if msg.TenantID == tenantID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type memoryDedupeStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDedupeStore() *memoryDedupeStore {
	return &memoryDedupeStore{seen: map[string]bool{}}
}

func (m *memoryDedupeStore) Claim(_ context.Context, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[token] {
		return false, nil
	}
	m.seen[token] = true
	return true, nil
}
