package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hylla/nexus/internal/adapters/server/httpapi"
	"github.com/hylla/nexus/internal/adapters/storage/sqlite"
	"github.com/hylla/nexus/internal/app"
)

func newService(t *testing.T) (*app.Service, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{}), repo
}

func TestNewHandlerRoutesHealthAPIAndMCP(t *testing.T) {
	svc, repo := newService(t)
	handler, cfg, err := NewHandler(Config{APIEndpoint: "api/v1/", MCPEndpoint: "/mcp/"}, Dependencies{
		Service:       svc,
		Authenticator: httpapi.HeaderAuthenticator{},
		Ping:          repo.Ping,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress || cfg.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s = %d %s", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /api/v1/me = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(httpapi.HeaderSubject, "sub-1")
	req.Header.Set(httpapi.HeaderEmail, "ada@example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ada@example.com") {
		t.Fatalf("/api/v1/me = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /mcp = %d, want 401", rec.Code)
	}
}

func TestReadinessReportsPingFailure(t *testing.T) {
	svc, _ := newService(t)
	handler, _, err := NewHandler(Config{}, Dependencies{
		Service:       svc,
		Authenticator: httpapi.HeaderAuthenticator{},
		Ping:          func(context.Context) error { return errors.New("db gone") },
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz = %d, want 503", rec.Code)
	}
}

func TestNormalizeConfigRejectsCollisions(t *testing.T) {
	if _, err := normalizeConfig(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}); err == nil {
		t.Fatal("expected equal endpoints to be rejected")
	}
	if _, err := normalizeConfig(Config{APIEndpoint: "/api", MCPEndpoint: "/api/mcp"}); err == nil {
		t.Fatal("expected nested mcp endpoint to be rejected")
	}
	svc, _ := newService(t)
	if _, _, err := NewHandler(Config{}, Dependencies{Service: svc}); err == nil {
		t.Fatal("expected missing authenticator to be rejected")
	}
}
