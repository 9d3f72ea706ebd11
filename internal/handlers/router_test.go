package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterHealthEndpoints(t *testing.T) {
	handler := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on %s, got %d", path, rec.Code)
		}
	}
}

func TestRouterReadyzHonoursCheck(t *testing.T) {
	ready := false
	handler := NewRouter(WithHealthHandlers(NewHealthHandlers(WithReadyCheck(func() bool { return ready }))))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}

	ready = true
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", rec.Code)
	}
}

func TestRouterUnknownRouteReturnsJSONEnvelope(t *testing.T) {
	handler := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["error"] != "route_not_found" {
		t.Fatalf("unexpected envelope %v", payload)
	}
}

func TestRouterUnconfiguredGroupReportsNotImplemented(t *testing.T) {
	handler := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestRouterWebhookMiddlewareScopedToGroup(t *testing.T) {
	var webhookHits int
	counting := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			webhookHits++
			next.ServeHTTP(w, r)
		})
	}

	handler := NewRouter(
		WithWebhookMiddlewares(counting),
		WithWebhookRoutes(NewWebhookHandlers(&stubRelayService{}, nil).Routes),
		WithAdminRoutes(NewAdminHandlers(&stubSyncService{}, nil).Routes),
	)

	postOrderWebhook(t, handler, `{"id": 1}`)
	if webhookHits != 1 {
		t.Fatalf("expected webhook middleware to run once, got %d", webhookHits)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/catalog/snapshot", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if webhookHits != 1 {
		t.Fatal("expected webhook middleware to stay scoped to /webhooks")
	}
}
