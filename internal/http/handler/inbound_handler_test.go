package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/domain"
	httpHandler "github.com/casedeskhq/casedesk/internal/http/handler"
	"github.com/casedeskhq/casedesk/internal/repository"
	inboundservice "github.com/casedeskhq/casedesk/internal/service/inbound"
	"github.com/casedeskhq/casedesk/internal/tenant"
)

type fakeInboundService struct {
	msg *domain.InboundMessage
	err error

	lastTenantID string
	lastEvent    inboundservice.Event
}

var _ inboundservice.Service = (*fakeInboundService)(nil)

func (f *fakeInboundService) HandleEvent(_ context.Context, tenantID string, ev inboundservice.Event) (*domain.InboundMessage, error) {
	f.lastTenantID = tenantID
	f.lastEvent = ev
	return f.msg, f.err
}

type slugOnlyTenantRepo struct {
	tenants map[string]domain.Tenant
}

var _ repository.TenantRepository = (*slugOnlyTenantRepo)(nil)

func (r *slugOnlyTenantRepo) GetTenant(context.Context, string) (domain.Tenant, error) {
	return domain.Tenant{}, pgx.ErrNoRows
}

func (r *slugOnlyTenantRepo) GetTenantBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	if t, ok := r.tenants[slug]; ok {
		return t, nil
	}
	return domain.Tenant{}, pgx.ErrNoRows
}

func (r *slugOnlyTenantRepo) GetDomainByHost(context.Context, string) (domain.TenantDomain, error) {
	return domain.TenantDomain{}, pgx.ErrNoRows
}

func newInboundTestContext(t *testing.T, slug string, form url.Values) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "https://desk.example.com/webhooks/mailgun/inbound/"+slug, strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Params = gin.Params{{Key: "tenant", Value: slug}}
	return c, w
}

func newInboundHandler(svc inboundservice.Service) *httpHandler.InboundHandler {
	repo := &slugOnlyTenantRepo{tenants: map[string]domain.Tenant{
		"acme": {ID: "org_42", Slug: "acme"},
	}}
	return httpHandler.NewInboundHandler(svc, tenant.NewResolver(repo), zap.NewNop())
}

func TestInboundReceiveStoresMessage(t *testing.T) {
	svc := &fakeInboundService{msg: &domain.InboundMessage{ID: 7, TenantID: "org_42"}}
	handler := newInboundHandler(svc)

	form := url.Values{}
	form.Set("timestamp", "1700000000")
	form.Set("token", "tok-1")
	form.Set("signature", "deadbeef")
	form.Set("sender", "alice@example.com")
	form.Set("recipient", "support@acme.example.com")
	form.Set("subject", "Printer on fire")

	c, w := newInboundTestContext(t, "acme", form)
	handler.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "org_42", svc.lastTenantID)
	require.Equal(t, "tok-1", svc.lastEvent.Proof.Token)
	require.Equal(t, "alice@example.com", svc.lastEvent.Sender)
	require.Contains(t, w.Body.String(), "stored")
}

func TestInboundReceiveUnknownTenant(t *testing.T) {
	handler := newInboundHandler(&fakeInboundService{})

	c, w := newInboundTestContext(t, "ghost", url.Values{})
	handler.Receive(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInboundReceiveStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad signature", inboundservice.ErrBadSignature, http.StatusUnauthorized},
		{"stale timestamp", inboundservice.ErrStaleTimestamp, http.StatusUnauthorized},
		{"missing signing key", inboundservice.ErrSigningKeyMissing, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newInboundHandler(&fakeInboundService{err: tc.err})

			c, w := newInboundTestContext(t, "acme", url.Values{})
			handler.Receive(c)

			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestInboundReceiveAcknowledgesDuplicates(t *testing.T) {
	handler := newInboundHandler(&fakeInboundService{err: inboundservice.ErrDuplicateEvent})

	c, w := newInboundTestContext(t, "acme", url.Values{})
	handler.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "duplicate")
}
