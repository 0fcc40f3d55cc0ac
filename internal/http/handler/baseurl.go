package handler

import (
	"net/http"
	"strings"

	"github.com/casedeskhq/casedesk/internal/config"
)

// CallbackPath is the Google OAuth redirect path registered with the provider.
const CallbackPath = "/integrations/google/callback"

// ResolveBaseURL returns the externally visible base URL for this deployment:
// the configured base URL when present, else the proxy's forwarded headers,
// else the request's own host. The result feeds the OAuth redirect URI, which
// must stay byte-identical between authorization start and token exchange.
func ResolveBaseURL(cfg config.Config, r *http.Request) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}

	scheme := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	host := strings.TrimSpace(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + host
}

// RedirectURI returns the full OAuth callback URI for the request.
func RedirectURI(cfg config.Config, r *http.Request) string {
	return ResolveBaseURL(cfg, r) + CallbackPath
}
