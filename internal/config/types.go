package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// AuthMode selects how the proxy authenticates upstream requests
type AuthMode string

const (
	// AuthModeBearer forwards a session token as an Authorization header
	AuthModeBearer AuthMode = "bearer"
	// AuthModeSigV4 signs each request with AWS Signature Version 4
	AuthModeSigV4 AuthMode = "sigv4"
)

// Config is the complete fieldfront configuration, loaded once at startup
// and injected into the server and proxy.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Cognito  CognitoConfig  `json:"cognito"`
	Upstream UpstreamConfig `json:"upstream"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr           string   `json:"addr"`
	BaseURL        string   `json:"baseURL"`
	Environment    string   `json:"environment,omitempty"` // "production" enables secure cookies
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// Production reports whether the server runs in a deployed environment.
func (s ServerConfig) Production() bool {
	return s.Environment == "production"
}

// CognitoConfig configures the identity provider client
type CognitoConfig struct {
	Region       string `json:"region"`
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"-"`
	Authority    string `json:"authority,omitempty"`
	Domain       string `json:"domain,omitempty"` // hosted UI domain, e.g. https://pool.auth.region.amazoncognito.com
}

// UnmarshalJSON resolves the client secret, which may be a plain string or
// an environment reference.
func (c *CognitoConfig) UnmarshalJSON(data []byte) error {
	type alias CognitoConfig
	var raw struct {
		alias
		ClientSecret json.RawMessage `json:"clientSecret"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = CognitoConfig(raw.alias)

	if raw.ClientSecret != nil {
		value, err := ResolveValue(raw.ClientSecret)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		c.ClientSecret = Secret(value)
	}
	return nil
}

// RouteConfig mounts one proxy passthrough on the server
type RouteConfig struct {
	Mount    string   `json:"mount"`              // e.g. "/api/checkin"
	Prefix   string   `json:"prefix,omitempty"`   // path prefix prepended upstream
	AuthMode AuthMode `json:"authMode,omitempty"` // overrides the upstream default
}

// UpstreamConfig configures the signed API upstream and its proxy routes
type UpstreamConfig struct {
	BaseURL  string   `json:"baseURL"`
	Region   string   `json:"region,omitempty"`
	Service  string   `json:"service,omitempty"` // defaults to execute-api
	AuthMode AuthMode `json:"authMode,omitempty"`

	// Optional explicit signing credentials. When absent the AWS default
	// credential chain is used.
	AccessKeyID     Secret `json:"-"`
	SecretAccessKey Secret `json:"-"`
	SessionToken    Secret `json:"-"`

	Routes []RouteConfig `json:"routes,omitempty"`
}

// UnmarshalJSON resolves credential fields, each a plain string or an
// environment reference.
func (u *UpstreamConfig) UnmarshalJSON(data []byte) error {
	type alias UpstreamConfig
	var raw struct {
		alias
		AccessKeyID     json.RawMessage `json:"accessKeyId"`
		SecretAccessKey json.RawMessage `json:"secretAccessKey"`
		SessionToken    json.RawMessage `json:"sessionToken"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = UpstreamConfig(raw.alias)

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *Secret
	}{
		{"accessKeyId", raw.AccessKeyID, &u.AccessKeyID},
		{"secretAccessKey", raw.SecretAccessKey, &u.SecretAccessKey},
		{"sessionToken", raw.SessionToken, &u.SessionToken},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		value, err := ResolveValue(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = Secret(value)
	}
	return nil
}

// ResolveValue parses a config value that is either a plain JSON string or
// a {"$env": "VAR_NAME"} reference resolved against the environment.
func ResolveValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return "", fmt.Errorf("environment variable %s not set", envVar)
		}
		return value, nil
	}

	return "", fmt.Errorf("unknown reference type in config value")
}
