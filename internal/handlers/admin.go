package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/qrmerch/relay/internal/platform/httpx"
	"github.com/qrmerch/relay/internal/services"
)

// AdminHandlers exposes operational endpoints for the catalog snapshot.
type AdminHandlers struct {
	sync   services.SyncService
	logger *zap.Logger
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(sync services.SyncService, logger *zap.Logger) *AdminHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandlers{sync: sync, logger: logger}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/catalog/sync", h.triggerCatalogSync)
	r.Get("/catalog/snapshot", h.snapshotSummary)
}

func (h *AdminHandlers) triggerCatalogSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sync == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sync_unavailable", "sync service unavailable", http.StatusServiceUnavailable))
		return
	}

	snapshot, err := h.sync.Rebuild(ctx)
	if err != nil {
		if errors.Is(err, services.ErrUpstreamUnavailable) {
			h.logger.Warn("catalog rebuild failed, provider unreachable", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("upstream_unavailable", "fulfillment provider is unreachable", http.StatusServiceUnavailable))
			return
		}
		h.logger.Error("catalog rebuild failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "catalog rebuild failed", http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "rebuilt",
		"sku_count":      len(snapshot.BySKU),
		"external_count": len(snapshot.ByExternalID),
	})
}

func (h *AdminHandlers) snapshotSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sync == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sync_unavailable", "sync service unavailable", http.StatusServiceUnavailable))
		return
	}

	snapshot := h.sync.Active()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sku_count":      len(snapshot.BySKU),
		"external_count": len(snapshot.ByExternalID),
	})
}
