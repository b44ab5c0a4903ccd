// Package internal wires the fieldfront server: cookie-backed auth
// endpoints plus the request-signing proxy to the upstream API.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/cookie"
	"github.com/fieldfront/fieldfront/internal/idp"
	"github.com/fieldfront/fieldfront/internal/log"
	"github.com/fieldfront/fieldfront/internal/proxy"
	"github.com/fieldfront/fieldfront/internal/server"
)

// Version is stamped by the release build; health checks report it.
var Version = "dev"

// FieldFront is the assembled application
type FieldFront struct {
	httpServer *server.HTTPServer
}

// NewFieldFront builds the provider, cookie store, proxy routes, and HTTP
// handler from a validated config.
func NewFieldFront(ctx context.Context, cfg config.Config) (*FieldFront, error) {
	provider, err := idp.NewCognitoProvider(ctx, cfg.Cognito)
	if err != nil {
		return nil, fmt.Errorf("creating identity provider: %w", err)
	}

	handler, err := BuildHTTPHandler(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}

	return &FieldFront{
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
	}, nil
}

// BuildHTTPHandler creates the complete HTTP handler with all routing and
// middleware. The provider is injected so tests can run against a fake.
func BuildHTTPHandler(ctx context.Context, cfg config.Config, provider idp.Provider) (http.Handler, error) {
	cookies := cookie.Store{Secure: cfg.Server.Production()}

	var hostedUI *idp.HostedUI
	if cfg.Cognito.Domain != "" {
		hostedUI = idp.NewHostedUI(cfg.Cognito, cfg.Server.BaseURL)
	}

	// The signer is shared across sigv4 routes; it is only constructed when
	// some route needs it so bearer-only deployments never touch the AWS
	// credential chain.
	var signer *proxy.Signer
	for _, route := range cfg.Upstream.Routes {
		if cfg.Upstream.ResolveAuthMode(route) == config.AuthModeSigV4 {
			s, err := proxy.NewSigner(ctx, cfg.Upstream)
			if err != nil {
				return nil, fmt.Errorf("creating request signer: %w", err)
			}
			signer = s
			break
		}
	}

	mux := http.NewServeMux()

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	authLogger := server.NewLoggerMiddleware("auth")
	proxyLogger := server.NewLoggerMiddleware("proxy")
	authRecover := server.NewRecoverMiddleware("auth")
	proxyRecover := server.NewRecoverMiddleware("proxy")

	authMiddleware := []server.MiddlewareFunc{corsMiddleware, authLogger, authRecover}
	proxyMiddleware := []server.MiddlewareFunc{corsMiddleware, proxyLogger, proxyRecover}

	mux.Handle("/health", server.NewHealthHandler(Version))

	// Method-qualified patterns never match OPTIONS, so preflight requests
	// get their own route; the CORS middleware answers before the inner
	// handler is reached.
	mux.Handle("OPTIONS /api/auth/", server.ChainMiddleware(http.NotFoundHandler(), authMiddleware...))

	authHandlers := server.NewAuthHandlers(provider, cookies, hostedUI)
	mux.Handle("POST /api/auth/login", server.ChainMiddleware(http.HandlerFunc(authHandlers.LoginHandler), authMiddleware...))
	mux.Handle("GET /api/auth/session", server.ChainMiddleware(http.HandlerFunc(authHandlers.SessionHandler), authMiddleware...))
	mux.Handle("POST /api/auth/logout", server.ChainMiddleware(http.HandlerFunc(authHandlers.LogoutHandler), authMiddleware...))
	if hostedUI != nil {
		mux.Handle("GET /api/auth/hosted", server.ChainMiddleware(http.HandlerFunc(authHandlers.HostedHandler), authMiddleware...))
	}

	for _, route := range cfg.Upstream.Routes {
		handler, err := proxy.New(cfg.Upstream, route, cookies, signer)
		if err != nil {
			return nil, fmt.Errorf("creating proxy route %s: %w", route.Mount, err)
		}

		log.LogInfoWithFields("proxy", "Mounting proxy route", map[string]any{
			"mount":    route.Mount,
			"prefix":   route.Prefix,
			"authMode": string(cfg.Upstream.ResolveAuthMode(route)),
		})

		wrapped := server.ChainMiddleware(handler, proxyMiddleware...)
		if mount := route.Mount; mount[len(mount)-1] == '/' {
			mux.Handle(mount, wrapped)
		} else {
			mux.Handle(mount+"/", wrapped)
			mux.Handle(mount, wrapped)
		}
	}

	return mux, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func (f *FieldFront) Run() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.LogInfoWithFields("main", "Shutting down", map[string]any{
			"signal": sig.String(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.httpServer.Stop(ctx)
}
