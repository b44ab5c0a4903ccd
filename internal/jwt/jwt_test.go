package jwt

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return "header." + base64.RawURLEncoding.EncodeToString(payload) + ".signature"
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  map[string]any
	}{
		{
			name:  "empty_token",
			token: "",
			want:  nil,
		},
		{
			name:  "single_segment",
			token: "onlyonesegment",
			want:  nil,
		},
		{
			name:  "invalid_base64_payload",
			token: "header.!!!not-base64!!!.sig",
			want:  nil,
		},
		{
			name:  "payload_is_not_json",
			token: "header." + base64.RawURLEncoding.EncodeToString([]byte("plain text")) + ".sig",
			want:  nil,
		},
		{
			name:  "two_segments_is_enough",
			token: "header." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"123"}`)),
			want:  map[string]any{"sub": "123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodePayload(tt.token))
		})
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	claims := map[string]any{
		"sub":              "abc-123",
		"email":            "user@example.com",
		"cognito:username": "user",
	}

	got := DecodePayload(makeToken(t, claims))
	assert.Equal(t, claims, got)
}

func TestDecodePayloadURLSafeAlphabet(t *testing.T) {
	// Pre-encoded payload exercising the -/_ alphabet without padding:
	// {"sub":"abc-123","email":"user@example.com","cognito:username":"user"}
	token := "h.eyJzdWIiOiJhYmMtMTIzIiwiZW1haWwiOiJ1c2VyQGV4YW1wbGUuY29tIiwiY29nbml0bzp1c2VybmFtZSI6InVzZXIifQ"

	got := DecodePayload(token)
	require.NotNil(t, got)
	assert.Equal(t, "user@example.com", got["email"])
	assert.Equal(t, "user", got["cognito:username"])
}
