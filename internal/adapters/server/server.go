// Package server composes HTTP API and MCP transports into one process handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/adapters/server/httpapi"
	"github.com/hylla/nexus/internal/adapters/server/mcpapi"
	"github.com/hylla/nexus/internal/app"
)

// defaultBindAddress defines the localhost-first serve default.
const defaultBindAddress = "127.0.0.1:8080"

// defaultShutdownTimeout bounds graceful shutdown time once context cancellation starts.
const defaultShutdownTimeout = 5 * time.Second

// defaultReadHeaderTimeout bounds slow header delivery.
const defaultReadHeaderTimeout = 10 * time.Second

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind        string
	APIEndpoint     string
	MCPEndpoint     string
	ServerName      string
	ServerVersion   string
	MaxBodyBytes    int64
	UploadMaxBytes  int64
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// Dependencies defines app-facing adapters required by server transports.
type Dependencies struct {
	Service       *app.Service
	Authenticator httpapi.Authenticator
	Logger        app.Logger
	// Ping reports storage readiness for /readyz. Nil means always ready.
	Ping func(context.Context) error
}

// NewHandler composes one root HTTP mux containing health, REST API, and MCP endpoints.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	normalizedCfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Service == nil {
		return nil, Config{}, fmt.Errorf("service dependency is required")
	}
	if deps.Authenticator == nil {
		return nil, Config{}, fmt.Errorf("authenticator dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(
		mcpapi.Config{
			ServerName:    normalizedCfg.ServerName,
			ServerVersion: normalizedCfg.ServerVersion,
			EndpointPath:  normalizedCfg.MCPEndpoint,
		},
		deps.Service,
	)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	apiHandler := httpapi.NewHandler(deps.Service, httpapi.Config{
		MaxBodyBytes:   normalizedCfg.MaxBodyBytes,
		UploadMaxBytes: normalizedCfg.UploadMaxBytes,
	})
	limiter := httpapi.NewRateLimiter(normalizedCfg.RateLimitRPS, normalizedCfg.RateLimitBurst)
	protect := func(next http.Handler) http.Handler {
		return httpapi.RequireCaller(deps.Service, deps.Authenticator, limiter.Middleware(next))
	}
	api := protect(http.StripPrefix(normalizedCfg.APIEndpoint, apiHandler))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", writeHealthStatus)
	mux.HandleFunc("/readyz", readiness(deps.Ping))
	mux.Handle(normalizedCfg.MCPEndpoint, protect(mcpHandler))
	mux.Handle(normalizedCfg.APIEndpoint, api)
	mux.Handle(normalizedCfg.APIEndpoint+"/", api)
	return httpapi.Recover(deps.Logger, httpapi.LogRequests(deps.Logger, mux)), normalizedCfg, nil
}

// Run starts the composed HTTP server and blocks until shutdown or startup failure.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, normalizedCfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	httpServer := &http.Server{
		Addr:              normalizedCfg.HTTPBind,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	if deps.Logger != nil {
		deps.Logger.Info("http server listening", "addr", normalizedCfg.HTTPBind, "api", normalizedCfg.APIEndpoint, "mcp", normalizedCfg.MCPEndpoint)
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), normalizedCfg.ShutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		serveErr := <-serveErrCh
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
			return fmt.Errorf("shutdown server: %w", shutdownErr)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve after shutdown: %w", serveErr)
		}
		return nil
	}
}

// normalizeConfig applies defaults and validates endpoint collisions.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, "/api/v1")
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, "/mcp")
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ")
	}
	if strings.HasPrefix(cfg.MCPEndpoint+"/", cfg.APIEndpoint+"/") {
		return Config{}, fmt.Errorf("mcp endpoint %s must not live under api endpoint %s", cfg.MCPEndpoint, cfg.APIEndpoint)
	}

	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "nexus"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return cfg, nil
}

// normalizeEndpoint normalizes one endpoint path and applies fallback defaults.
func normalizeEndpoint(path string, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return fallback
	}
	return path
}

// writeHealthStatus responds with a deterministic liveness payload.
func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// readiness reports 503 while the storage ping fails.
func readiness(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
				return
			}
		}
		writeHealthStatus(w, r)
	}
}
