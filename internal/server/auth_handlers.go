package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fieldfront/fieldfront/internal/cookie"
	"github.com/fieldfront/fieldfront/internal/idp"
	jsonwriter "github.com/fieldfront/fieldfront/internal/json"
	"github.com/fieldfront/fieldfront/internal/jwt"
	"github.com/fieldfront/fieldfront/internal/log"
)

// User is the session view returned by the auth endpoints. Profile carries
// unverified claims decoded from the id token (access token as fallback)
// and is a display hint, not a security assertion.
type User struct {
	AccessToken  string         `json:"access_token"`
	IDToken      string         `json:"id_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type"`
	Profile      map[string]any `json:"profile"`
}

type userResponse struct {
	User *User `json:"user"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthHandlers implements the cookie-backed session endpoints.
type AuthHandlers struct {
	provider idp.Provider
	cookies  cookie.Store
	hostedUI *idp.HostedUI
}

// NewAuthHandlers creates auth handlers with dependency injection.
// hostedUI may be nil when no hosted UI domain is configured.
func NewAuthHandlers(provider idp.Provider, cookies cookie.Store, hostedUI *idp.HostedUI) *AuthHandlers {
	return &AuthHandlers{
		provider: provider,
		cookies:  cookies,
		hostedUI: hostedUI,
	}
}

// LoginHandler exchanges credentials with the identity provider and
// establishes the cookie session.
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid request body")
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	password := req.Password
	if identifier == "" || strings.TrimSpace(password) == "" {
		jsonwriter.WriteBadRequest(w, "identifier and password are required")
		return
	}

	result, err := h.provider.PasswordGrant(r.Context(), identifier, password)
	if err != nil {
		var challenge *idp.ChallengeError
		switch {
		case errors.As(err, &challenge):
			log.LogInfoWithFields("auth", "Login requires additional challenge", map[string]any{
				"challenge": challenge.Name,
			})
			_ = jsonwriter.WriteResponse(w, http.StatusConflict, map[string]string{
				"message":   "additional authentication required",
				"challenge": challenge.Name,
			})
		case errors.Is(err, idp.ErrAuthenticationFailed):
			jsonwriter.WriteUnauthorized(w, "authentication failed")
		default:
			log.LogErrorWithFields("auth", "Login failed", map[string]any{
				"error": err.Error(),
			})
			jsonwriter.WriteInternalServerError(w, err.Error())
		}
		return
	}

	profileToken := result.IDToken
	if profileToken == "" {
		profileToken = result.AccessToken
	}
	profile := jwt.DecodePayload(profileToken)
	if profile == nil {
		profile = map[string]any{}
	}

	tokenTTL := time.Duration(result.ExpiresIn) * time.Second
	h.cookies.Write(w, cookie.AccessTokenCookie, result.AccessToken, tokenTTL)
	if result.IDToken != "" {
		h.cookies.Write(w, cookie.IDTokenCookie, result.IDToken, tokenTTL)
	}
	if result.RefreshToken != "" {
		h.cookies.Write(w, cookie.RefreshTokenCookie, result.RefreshToken, cookie.RefreshTokenMaxAge)
	}

	_ = jsonwriter.Write(w, userResponse{User: &User{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		Profile:      profile,
	}})
}

// SessionHandler reconstructs the current user from cookies alone. This is
// a local, possibly-stale view; no revocation check is made against the
// provider.
func (h *AuthHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	tokens := h.cookies.Read(r)

	profileToken := tokens.IDToken
	if profileToken == "" {
		profileToken = tokens.AccessToken
	}
	if profileToken == "" {
		_ = jsonwriter.WriteResponse(w, http.StatusUnauthorized, userResponse{User: nil})
		return
	}

	profile := jwt.DecodePayload(profileToken)
	if profile == nil {
		profile = map[string]any{}
	}

	_ = jsonwriter.Write(w, userResponse{User: &User{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		Profile:      profile,
	}})
}

// LogoutHandler unconditionally clears the session cookies. The browser is
// responsible for visiting the provider's hosted logout URL separately.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAll(w)
	_ = jsonwriter.Write(w, map[string]bool{"ok": true})
}

// HostedHandler describes the provider-hosted login and logout URLs for
// browsers driving the redirect flow.
func (h *AuthHandlers) HostedHandler(w http.ResponseWriter, r *http.Request) {
	if h.hostedUI == nil {
		jsonwriter.WriteError(w, http.StatusNotFound, "hosted UI is not configured")
		return
	}

	_ = jsonwriter.Write(w, map[string]string{
		"authorize_url": h.hostedUI.AuthorizeURL(r.URL.Query().Get("state")),
		"logout_url":    h.hostedUI.LogoutURL(),
	})
}
