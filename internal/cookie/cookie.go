// Package cookie reads and writes the httpOnly session token cookies.
package cookie

import (
	"net/http"
	"time"

	"github.com/fieldfront/fieldfront/internal/log"
)

// Cookie names for the three session tokens
const (
	AccessTokenCookie  = "ff_access_token"
	IDTokenCookie      = "ff_id_token"
	RefreshTokenCookie = "ff_refresh_token"
)

// RefreshTokenMaxAge is the fixed lifetime of the refresh token cookie.
// Cognito does not report a refresh token expiry in the auth result.
const RefreshTokenMaxAge = 30 * 24 * time.Hour

// Tokens holds the session tokens read from a request. Empty string means
// the cookie was absent.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// Store writes session cookies with a fixed policy: httpOnly, SameSite=Lax,
// Path=/. Secure is tied to the deployment environment.
type Store struct {
	Secure bool
}

// Read looks up the three session cookies on the request.
func (s Store) Read(r *http.Request) Tokens {
	return Tokens{
		AccessToken:  value(r, AccessTokenCookie),
		IDToken:      value(r, IDTokenCookie),
		RefreshToken: value(r, RefreshTokenCookie),
	}
}

// Write sets a session token cookie with the given lifetime.
func (s Store) Write(w http.ResponseWriter, name, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"name":   name,
		"maxAge": maxAge.String(),
		"secure": s.Secure,
	})
}

// Clear expires a cookie by writing it back empty. MaxAge -1 emits
// Max-Age=0 on the wire.
func (s Store) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// ClearAll expires all three session cookies.
func (s Store) ClearAll(w http.ResponseWriter) {
	s.Clear(w, AccessTokenCookie)
	s.Clear(w, IDTokenCookie)
	s.Clear(w, RefreshTokenCookie)
	log.LogTraceWithFields("cookie", "Session cookies cleared", nil)
}

func value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
