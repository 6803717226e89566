package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/funnel/internal/adapters/server/common"
)

// stubPipelines returns a fixed stage list for composition tests.
type stubPipelines struct{}

func (stubPipelines) Board(context.Context, string) (common.Board, error) {
	return common.Board{Pipeline: "leads"}, nil
}

func (stubPipelines) ListStages(context.Context, string) ([]common.Stage, error) {
	return []common.Stage{{ID: "new", Title: "Novo Lead"}}, nil
}

func (stubPipelines) SaveStages(context.Context, string, []common.StageInput) ([]common.Stage, error) {
	return nil, nil
}

func (stubPipelines) MoveItem(context.Context, common.MoveItemRequest) (common.MoveItemResult, error) {
	return common.MoveItemResult{}, nil
}

// TestNewHandlerRoutes verifies health and API routes are mounted.
func TestNewHandlerRoutes(t *testing.T) {
	handler, cfg, err := NewHandler(Config{}, Dependencies{Pipelines: stubPipelines{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s = %d %q", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pipelines/leads/stages", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"new"`) {
		t.Fatalf("stages = %d %q", rec.Code, rec.Body.String())
	}
}

// TestNewHandlerReadinessFailure verifies /readyz reports storage failures.
func TestNewHandlerReadinessFailure(t *testing.T) {
	handler, _, err := NewHandler(Config{}, Dependencies{
		Pipelines: stubPipelines{},
		Ready:     func(context.Context) error { return errors.New("db down") },
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// TestNewHandlerValidation verifies dependency and endpoint validation.
func TestNewHandlerValidation(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing pipelines dependency error")
	}
	if _, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, Dependencies{Pipelines: stubPipelines{}}); err == nil {
		t.Fatal("expected endpoint collision error")
	}
}

// TestNormalizeEndpoint verifies endpoint cleanup.
func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":          "/api/v1",
		"/":         "/api/v1",
		"api":       "/api",
		" /api/v2/": "/api/v2",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/api/v1"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRunShutsDownOnCancel verifies Run serves and exits cleanly on cancellation.
func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{
			Pipelines: stubPipelines{},
			Logger:    nil,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(defaultShutdownTimeout + time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

// TestWriteHealthStatus verifies the health payload shape.
func TestWriteHealthStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeHealthStatus(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "{\"status\":\"ok\"}\n" {
		t.Fatalf("body = %q", body)
	}
}
