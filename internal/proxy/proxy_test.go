package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/cookie"
)

// capturedRequest records what the upstream saw
type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

func newUpstream(t *testing.T, respond func(w http.ResponseWriter)) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = r.URL.RawQuery
		captured.Header = r.Header.Clone()
		captured.Body, _ = io.ReadAll(r.Body)
		if respond != nil {
			respond(w)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newBearerHandler(t *testing.T, upstreamURL, basePath string, route config.RouteConfig) *Handler {
	t.Helper()
	h, err := New(config.UpstreamConfig{BaseURL: upstreamURL + basePath}, route, cookie.Store{}, nil)
	require.NoError(t, err)
	return h
}

func TestTargetPathConstruction(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		route    config.RouteConfig
		reqPath  string
		wantPath string
	}{
		{
			name:     "base_prefix_and_segments",
			basePath: "/api",
			route:    config.RouteConfig{Mount: "/api/checkin", Prefix: "checkin"},
			reqPath:  "/api/checkin/visits/42",
			wantPath: "/api/checkin/visits/42",
		},
		{
			name:     "no_prefix",
			basePath: "/v1",
			route:    config.RouteConfig{Mount: "/api/aws"},
			reqPath:  "/api/aws/reports",
			wantPath: "/v1/reports",
		},
		{
			name:     "everything_empty_defaults_to_root",
			basePath: "",
			route:    config.RouteConfig{Mount: "/api/aws"},
			reqPath:  "/api/aws",
			wantPath: "/",
		},
		{
			name:     "prefix_normalization",
			basePath: "/api/",
			route:    config.RouteConfig{Mount: "/api/checkin", Prefix: "checkin/"},
			reqPath:  "/api/checkin",
			wantPath: "/api/checkin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream, captured := newUpstream(t, nil)
			h := newBearerHandler(t, upstream.URL, tt.basePath, tt.route)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.reqPath, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantPath, captured.Path)
		})
	}
}

func TestQueryStringPreserved(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/visits?from=2026-01-01&status=open", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "from=2026-01-01&status=open", captured.Query)
}

func TestBearerTokenInjectedFromCookie(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", nil)
	req.AddCookie(&http.Cookie{Name: cookie.AccessTokenCookie, Value: "access-abc"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Bearer access-abc", captured.Header.Get("Authorization"))
}

func TestBearerFallsBackToIDToken(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", nil)
	req.AddCookie(&http.Cookie{Name: cookie.IDTokenCookie, Value: "id-xyz"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Bearer id-xyz", captured.Header.Get("Authorization"))
}

func TestBearerKeepsCallerAuthorization(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", nil)
	req.Header.Set("Authorization", "Bearer caller-token")
	req.AddCookie(&http.Cookie{Name: cookie.AccessTokenCookie, Value: "cookie-token"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Bearer caller-token", captured.Header.Get("Authorization"))
}

func TestBearerWithNoTokenSendsNoAuthorization(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/aws/me", nil))

	assert.Empty(t, captured.Header.Get("Authorization"))
}

func TestRequestHeaderForwarding(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-1", captured.Header.Get("X-Request-Id"))
	assert.Equal(t, "application/json", captured.Header.Get("Accept"))
	assert.Empty(t, captured.Header.Get("Accept-Encoding"), "Accept-Encoding must not be forwarded")
}

func TestBodyForwarding(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/checkin", Prefix: "checkin"})

	req := httptest.NewRequest(http.MethodPost, "/api/checkin/visits", strings.NewReader(`{"site":"tokyo-3"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, `{"site":"tokyo-3"}`, string(captured.Body))
}

func TestGetNeverCarriesBody(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", strings.NewReader("ignored"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, captured.Body)
}

func TestResponseRelay(t *testing.T) {
	upstream, _ := newUpstream(t, func(w http.ResponseWriter) {
		w.Header().Set("X-Upstream-Id", "u-1")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aws/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Equal(t, "u-1", rec.Header().Get("X-Upstream-Id"))
	assert.Empty(t, rec.Header().Get("Keep-Alive"), "hop-by-hop headers must be stripped")
}

func TestUpstreamErrorsAreRelayedVerbatim(t *testing.T) {
	upstream, _ := newUpstream(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"backend exploded"}`))
	})
	h := newBearerHandler(t, upstream.URL, "", config.RouteConfig{Mount: "/api/aws"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aws/boom", nil))

	// The proxy never interprets upstream error bodies
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"detail":"backend exploded"}`, rec.Body.String())
}

func TestUnreachableUpstreamYields500(t *testing.T) {
	h := newBearerHandler(t, "http://127.0.0.1:1", "", config.RouteConfig{Mount: "/api/aws"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/aws/me", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func newSigV4Handler(t *testing.T, upstreamURL string) *Handler {
	t.Helper()
	cfg := config.UpstreamConfig{
		BaseURL:         upstreamURL,
		Region:          "us-east-1",
		Service:         "execute-api",
		AuthMode:        config.AuthModeSigV4,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}
	signer, err := NewSigner(context.Background(), cfg)
	require.NoError(t, err)

	h, err := New(cfg, config.RouteConfig{Mount: "/api/aws"}, cookie.Store{}, signer)
	require.NoError(t, err)
	return h
}

func TestSigV4SignsRequest(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newSigV4Handler(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/aws/visits", strings.NewReader(`{"site":"osaka-1"}`))
	req.Header.Set("Authorization", "Bearer caller-token")
	req.Header.Set("X-Amz-Date", "spoofed")
	h.ServeHTTP(httptest.NewRecorder(), req)

	auth := captured.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256"), "got %q", auth)
	assert.Contains(t, auth, "Credential=AKIDEXAMPLE/")
	assert.Contains(t, auth, "us-east-1/execute-api/aws4_request")
	assert.NotEqual(t, "spoofed", captured.Header.Get("X-Amz-Date"), "caller X-Amz-Date must be replaced")
	assert.NotEmpty(t, captured.Header.Get("X-Amz-Date"))
}

func TestSigV4DoesNotReadCookies(t *testing.T) {
	upstream, captured := newUpstream(t, nil)
	h := newSigV4Handler(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/aws/me", nil)
	req.AddCookie(&http.Cookie{Name: cookie.AccessTokenCookie, Value: "session-token"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	auth := captured.Header.Get("Authorization")
	assert.NotContains(t, auth, "session-token")
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256"))
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"/", ""},
		{"checkin", "/checkin"},
		{"checkin/", "/checkin"},
		{"/checkin", "/checkin"},
		{"/checkin/", "/checkin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePrefix(tt.in), "prefix %q", tt.in)
	}
}
