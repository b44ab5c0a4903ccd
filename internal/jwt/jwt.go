// Package jwt decodes JWT payloads for display purposes.
//
// No signature, audience, issuer, or expiry validation is performed. The
// result is a display hint only and must never back an access-control
// decision.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodePayload extracts the claims from the payload segment of a JWT.
// Returns nil for anything that does not decode cleanly: fewer than two
// dot-separated segments, invalid base64, or an unparsable JSON payload.
func DecodePayload(token string) map[string]any {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(pad(fromURLSafe(parts[1])))
	if err != nil {
		return nil
	}

	var claims map[string]any
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil
	}
	return claims
}

func fromURLSafe(s string) string {
	s = strings.ReplaceAll(s, "-", "+")
	return strings.ReplaceAll(s, "_", "/")
}

func pad(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}
