package idp

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/fieldfront/fieldfront/internal/config"
)

// HostedUI builds redirect URLs for the provider-hosted login and logout
// pages. Both redirect back to the application's login screen, which
// terminates the provider-side session independently of the cookie session
// this server owns.
type HostedUI struct {
	oauth     oauth2.Config
	domain    string
	logoutURI string
}

// NewHostedUI derives the hosted UI configuration from the Cognito domain
// and the application base URL.
func NewHostedUI(cfg config.CognitoConfig, appBaseURL string) *HostedUI {
	domain := strings.TrimSuffix(cfg.Domain, "/")
	redirectURI := strings.TrimSuffix(appBaseURL, "/") + "/login"

	return &HostedUI{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: redirectURI,
			Scopes:      []string{"email", "openid", "phone"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  domain + "/oauth2/authorize",
				TokenURL: domain + "/oauth2/token",
			},
		},
		domain:    domain,
		logoutURI: redirectURI,
	}
}

// AuthorizeURL returns the hosted login URL for the authorization code flow.
func (h *HostedUI) AuthorizeURL(state string) string {
	return h.oauth.AuthCodeURL(state)
}

// LogoutURL returns the hosted logout URL, which clears the provider-side
// session and redirects back to the application.
func (h *HostedUI) LogoutURL() string {
	return fmt.Sprintf("%s/logout?client_id=%s&logout_uri=%s",
		h.domain, url.QueryEscape(h.oauth.ClientID), url.QueryEscape(h.logoutURI))
}
