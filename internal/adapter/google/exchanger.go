package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Exchanger encapsulates Google's OAuth endpoints: authorization URL
// construction and the outbound code exchange.
type Exchanger interface {
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	FetchAccountEmail(ctx context.Context, accessToken string) (string, error)
}

const userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// HTTPExchanger is the default implementation backed by x/oauth2.
type HTTPExchanger struct {
	clientID     string
	clientSecret string
	scopes       []string
	httpClient   *http.Client
}

// NewHTTPExchanger constructs the default Exchanger.
func NewHTTPExchanger(clientID, clientSecret string, scopes []string, client *http.Client) *HTTPExchanger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPExchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		httpClient:   client,
	}
}

func (e *HTTPExchanger) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURI,
		Scopes:       e.scopes,
	}
}

// AuthCodeURL builds the authorization URL carrying the opaque state. The
// offline access type plus consent prompt makes Google return a refresh token
// even for repeat grants.
func (e *HTTPExchanger) AuthCodeURL(state, redirectURI string) string {
	return e.config(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps the authorization code for tokens. The redirect URI must be
// byte-identical to the one used at authorization start or Google rejects it.
func (e *HTTPExchanger) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	token, err := e.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("exchange code: empty access token")
	}
	return token, nil
}

// FetchAccountEmail loads the connected account's email from the userinfo endpoint.
func (e *HTTPExchanger) FetchAccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("userinfo failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(payload.Email)), nil
}
