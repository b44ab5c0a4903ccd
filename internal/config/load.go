package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultService is the signing service name used when the config omits one.
const DefaultService = "execute-api"

// DefaultRoutes are the proxy mounts used when the config omits routes:
// a raw passthrough plus the check-in API prefix.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Mount: "/api/aws"},
		{Mount: "/api/checkin", Prefix: "checkin"},
	}
}

// Load reads, parses, and validates the config file. Environment references
// are resolved during parsing, so a missing variable fails here rather than
// mid-request.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Upstream.Service == "" {
		config.Upstream.Service = DefaultService
	}
	if config.Upstream.AuthMode == "" {
		config.Upstream.AuthMode = AuthModeBearer
	}
	if len(config.Upstream.Routes) == 0 {
		config.Upstream.Routes = DefaultRoutes()
	}
}

// Validate checks the resolved configuration, failing fast on anything the
// server or proxy would otherwise discover mid-request.
func Validate(config *Config) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}

	if config.Cognito.Region == "" {
		return fmt.Errorf("cognito.region is required")
	}
	if config.Cognito.ClientID == "" {
		return fmt.Errorf("cognito.clientId is required")
	}

	if config.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.baseURL is required")
	}

	needsSigning := false
	seen := make(map[string]bool)
	for i, route := range config.Upstream.Routes {
		if route.Mount == "" || !strings.HasPrefix(route.Mount, "/") {
			return fmt.Errorf("upstream.routes[%d].mount must start with /", i)
		}
		if seen[route.Mount] {
			return fmt.Errorf("upstream.routes[%d].mount %s is duplicated", i, route.Mount)
		}
		seen[route.Mount] = true

		mode := route.AuthMode
		if mode == "" {
			mode = config.Upstream.AuthMode
		}
		switch mode {
		case AuthModeBearer:
		case AuthModeSigV4:
			needsSigning = true
		default:
			return fmt.Errorf("upstream.routes[%d].authMode %q is invalid (bearer or sigv4)", i, mode)
		}
	}

	if needsSigning && config.Upstream.Region == "" {
		return fmt.Errorf("upstream.region is required when any route uses sigv4")
	}

	if (config.Upstream.AccessKeyID == "") != (config.Upstream.SecretAccessKey == "") {
		return fmt.Errorf("upstream.accessKeyId and upstream.secretAccessKey must be set together")
	}

	return nil
}

// ResolveAuthMode picks the effective auth mode for a route: explicit route
// option, then the upstream default, then bearer.
func (u UpstreamConfig) ResolveAuthMode(route RouteConfig) AuthMode {
	if route.AuthMode != "" {
		return route.AuthMode
	}
	if u.AuthMode != "" {
		return u.AuthMode
	}
	return AuthModeBearer
}
