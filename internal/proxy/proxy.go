// Package proxy forwards backend data calls to the configured upstream API,
// attaching either a session bearer token or an AWS SigV4 request signature.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/cookie"
	"github.com/fieldfront/fieldfront/internal/log"
)

// requestHeaderExclusions are never forwarded upstream. Signature mode
// additionally drops the credential headers via the authenticator.
var requestHeaderExclusions = map[string]bool{
	"Host":            true,
	"Connection":      true,
	"Content-Length":  true,
	"Accept-Encoding": true,
}

// Handler proxies every request under one mount to the upstream API.
// The authentication strategy is fixed at construction.
type Handler struct {
	upstream *url.URL
	mount    string
	prefix   string
	auth     authenticator
	client   *http.Client
}

// New builds a proxy handler for one configured route. The effective auth
// mode is resolved once: route override, then upstream default, then bearer.
func New(upstream config.UpstreamConfig, route config.RouteConfig, cookies cookie.Store, signer *Signer) (*Handler, error) {
	base, err := url.Parse(upstream.BaseURL)
	if err != nil {
		return nil, err
	}

	var auth authenticator
	switch upstream.ResolveAuthMode(route) {
	case config.AuthModeSigV4:
		auth = &sigv4Auth{signer: signer}
	default:
		auth = &bearerAuth{cookies: cookies}
	}

	return &Handler{
		upstream: base,
		mount:    strings.TrimSuffix(route.Mount, "/"),
		prefix:   normalizePrefix(route.Prefix),
		auth:     auth,
		client:   &http.Client{},
	}, nil
}

// ServeHTTP implements a single-attempt passthrough: one outbound call per
// inbound call, no retry, no backoff. Retry policy belongs to the caller.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	targetURL := h.buildTargetURL(r)

	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL.String(), bodyReader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	copyForwardHeaders(outReq.Header, r.Header, h.auth.excludedHeaders())

	if err := h.auth.authenticate(outReq, r, body); err != nil {
		log.LogErrorWithFields("proxy", "Failed to authenticate upstream request", map[string]any{
			"error":  err.Error(),
			"target": targetURL.Redacted(),
		})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.LogDebugWithFields("proxy", "Proxying request", map[string]any{
		"method": r.Method,
		"target": targetURL.Redacted(),
	})

	resp, err := h.client.Do(outReq)
	if err != nil {
		log.LogErrorWithFields("proxy", "Upstream request failed", map[string]any{
			"error":  err.Error(),
			"target": targetURL.Redacted(),
		})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.LogWarnWithFields("proxy", "Failed to relay upstream body", map[string]any{
			"error": err.Error(),
		})
	}
}

// buildTargetURL joins the upstream base path, the route prefix, and the
// trailing request path, preserving the query string verbatim.
func (h *Handler) buildTargetURL(r *http.Request) *url.URL {
	trailing := strings.TrimPrefix(r.URL.Path, h.mount)
	trailing = strings.Trim(trailing, "/")
	if trailing != "" {
		trailing = "/" + trailing
	}

	path := strings.TrimSuffix(h.upstream.Path, "/") + h.prefix + trailing
	if path == "" {
		path = "/"
	}

	target := *h.upstream
	target.Path = path
	target.RawQuery = r.URL.RawQuery
	return &target
}

// readBody drains the request body. GET and HEAD never carry one.
func readBody(r *http.Request) ([]byte, error) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func normalizePrefix(prefix string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "/" + trimmed
	}
	return trimmed
}

func copyForwardHeaders(dst, src http.Header, extraExclusions map[string]bool) {
	for k, v := range src {
		if requestHeaderExclusions[k] || extraExclusions[k] {
			continue
		}
		dst[k] = v
	}
}

func isHopByHop(header string) bool {
	switch header {
	case "Connection", "Keep-Alive", "Proxy-Authenticate",
		"Proxy-Authorization", "Te", "Trailer",
		"Transfer-Encoding", "Upgrade":
		return true
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
