package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casedeskhq/casedesk/internal/config"
	"github.com/casedeskhq/casedesk/internal/domain"
	"github.com/casedeskhq/casedesk/internal/envelope"
	httpHandler "github.com/casedeskhq/casedesk/internal/http/handler"
	googleservice "github.com/casedeskhq/casedesk/internal/service/google"
	"github.com/casedeskhq/casedesk/internal/tenant"
)

type fakeGoogleService struct {
	authURL        string
	authErr        error
	callbackResult *googleservice.CallbackResult
	callbackErr    error
	status         *googleservice.ConnectionStatus
	statusErr      error
	disconnectErr  error

	lastTenantID string
	lastReturnTo string
}

var _ googleservice.Service = (*fakeGoogleService)(nil)

func (f *fakeGoogleService) BuildAuthorizationURL(tenantID, returnTo, redirectURI string) (string, error) {
	f.lastTenantID = tenantID
	f.lastReturnTo = returnTo
	return f.authURL, f.authErr
}

func (f *fakeGoogleService) ConsumeCallbackState(string) (*googleservice.StatePayload, error) {
	return nil, nil
}

func (f *fakeGoogleService) HandleCallback(context.Context, googleservice.CallbackInput) (*googleservice.CallbackResult, error) {
	return f.callbackResult, f.callbackErr
}

func (f *fakeGoogleService) Status(context.Context, string) (*googleservice.ConnectionStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeGoogleService) Disconnect(context.Context, string, string) error {
	return f.disconnectErr
}

func newGoogleTestContext(t *testing.T, target string, withTenant bool) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	if withTenant {
		c.Set("tenantContext", &tenant.Context{Tenant: domain.Tenant{ID: "org_42", Slug: "acme"}})
	}
	return c, w
}

func TestGoogleStartRedirectsToAuthorizationURL(t *testing.T) {
	svc := &fakeGoogleService{authURL: "https://accounts.google.com/o/oauth2/auth?state=abc"}
	handler := httpHandler.NewGoogleHandler(svc, config.Config{PublicBaseURL: "https://desk.example.com"}, zap.NewNop())

	c, w := newGoogleTestContext(t, "https://desk.example.com/api/integrations/google/start?return_to=/settings", true)
	handler.Start(c)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, svc.authURL, w.Header().Get("Location"))
	require.Equal(t, "org_42", svc.lastTenantID)
	require.Equal(t, "/settings", svc.lastReturnTo)
}

func TestGoogleStartWithoutTenantIsNotFound(t *testing.T) {
	handler := httpHandler.NewGoogleHandler(&fakeGoogleService{}, config.Config{}, zap.NewNop())

	c, w := newGoogleTestContext(t, "https://desk.example.com/api/integrations/google/start", false)
	handler.Start(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGoogleStartRejectsExternalReturnTo(t *testing.T) {
	svc := &fakeGoogleService{authURL: "https://accounts.google.com/o/oauth2/auth"}
	handler := httpHandler.NewGoogleHandler(svc, config.Config{}, zap.NewNop())

	c, _ := newGoogleTestContext(t, "https://desk.example.com/api/integrations/google/start?return_to=//evil.example.com", true)
	handler.Start(c)

	require.Equal(t, "/", svc.lastReturnTo)
}

func TestGoogleCallbackProviderErrorRedirects(t *testing.T) {
	handler := httpHandler.NewGoogleHandler(&fakeGoogleService{}, config.Config{}, zap.NewNop())

	c, w := newGoogleTestContext(t, "https://desk.example.com/integrations/google/callback?error=access_denied", false)
	handler.Callback(c)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/settings/integrations", loc.Path)
	require.Equal(t, "access_denied", loc.Query().Get("reason"))
}

func TestGoogleCallbackMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"malformed state", envelope.ErrMalformedToken, "malformed_state"},
		{"tampered state", envelope.ErrAuthentication, "invalid_state"},
		{"expired state", googleservice.ErrStateExpired, "state_expired"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := httpHandler.NewGoogleHandler(&fakeGoogleService{callbackErr: tc.err}, config.Config{}, zap.NewNop())

			c, w := newGoogleTestContext(t, "https://desk.example.com/integrations/google/callback?code=c&state=s", false)
			handler.Callback(c)

			require.Equal(t, http.StatusFound, w.Code)
			loc, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err)
			require.Equal(t, tc.reason, loc.Query().Get("reason"))
		})
	}
}

func TestGoogleCallbackSuccessRedirectsToReturnTo(t *testing.T) {
	svc := &fakeGoogleService{callbackResult: &googleservice.CallbackResult{TenantID: "org_42", ReturnTo: "/settings/integrations"}}
	handler := httpHandler.NewGoogleHandler(svc, config.Config{}, zap.NewNop())

	c, w := newGoogleTestContext(t, "https://desk.example.com/integrations/google/callback?code=c&state=s", false)
	handler.Callback(c)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/settings/integrations", w.Header().Get("Location"))
}

func TestGoogleDisconnectNotConnected(t *testing.T) {
	handler := httpHandler.NewGoogleHandler(&fakeGoogleService{disconnectErr: googleservice.ErrNotConnected}, config.Config{}, zap.NewNop())

	c, w := newGoogleTestContext(t, "https://desk.example.com/api/integrations/google", true)
	handler.Disconnect(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
