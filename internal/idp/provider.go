// Package idp talks to the identity provider that issues session tokens.
package idp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// AuthResult holds the tokens issued by a successful password grant.
// IDToken and RefreshToken may be empty depending on the client
// configuration.
type AuthResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	ExpiresIn    int32 // seconds, applies to the access and id tokens
}

// ErrAuthenticationFailed indicates the provider rejected the credentials
// or issued no access token. Surfaced to callers as HTTP 401.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ChallengeError indicates the provider demands an additional auth step
// (MFA, forced password change). Surfaced to callers as HTTP 409 and never
// retried automatically.
type ChallengeError struct {
	Name string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("additional authentication challenge required: %s", e.Name)
}

// Provider abstracts the identity provider's password-grant operation.
type Provider interface {
	// PasswordGrant exchanges credentials for session tokens. Returns
	// ErrAuthenticationFailed for rejected credentials, *ChallengeError when
	// the provider demands another step, and an ordinary error for
	// configuration or transport failures.
	PasswordGrant(ctx context.Context, identifier, password string) (*AuthResult, error)
}

// SecretHash computes the keyed hash Cognito requires when the app client
// is configured with a secret: base64(HMAC-SHA256(secret, username+clientID)).
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
