package idp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldfront/fieldfront/internal/config"
)

func TestSecretHash(t *testing.T) {
	// HMAC-SHA256("app-secret", "user@example.com" + "client-id"), base64
	got := SecretHash("user@example.com", "client-id", "app-secret")
	assert.Equal(t, "WCD2LTSaXF50yifqcxT+p/eWGZcqP7kq5VPlSl3qUt8=", got)
}

func TestSecretHashVariesByUsername(t *testing.T) {
	a := SecretHash("alice", "client", "secret")
	b := SecretHash("bob", "client", "secret")
	assert.NotEqual(t, a, b)
}

func TestChallengeErrorMessage(t *testing.T) {
	err := &ChallengeError{Name: "NEW_PASSWORD_REQUIRED"}
	assert.Contains(t, err.Error(), "NEW_PASSWORD_REQUIRED")
}

func TestHostedUI(t *testing.T) {
	hosted := NewHostedUI(config.CognitoConfig{
		ClientID: "abc123",
		Domain:   "https://pool.auth.us-east-1.amazoncognito.com/",
	}, "https://app.example.com/")

	authorizeURL := hosted.AuthorizeURL("xyz")
	assert.Contains(t, authorizeURL, "https://pool.auth.us-east-1.amazoncognito.com/oauth2/authorize")
	assert.Contains(t, authorizeURL, "client_id=abc123")
	assert.Contains(t, authorizeURL, "state=xyz")
	assert.Contains(t, authorizeURL, "redirect_uri=https%3A%2F%2Fapp.example.com%2Flogin")

	logoutURL := hosted.LogoutURL()
	assert.Equal(t,
		"https://pool.auth.us-east-1.amazoncognito.com/logout?client_id=abc123&logout_uri=https%3A%2F%2Fapp.example.com%2Flogin",
		logoutURL)
}
