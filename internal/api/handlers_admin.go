package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"productservice/internal/models"
	"productservice/internal/ratelimit"
	"productservice/internal/version"

	"github.com/gorilla/mux"
)

// CacheInvalidator drops cached products on this instance. It is satisfied
// by invalidation.Coordinator.
type CacheInvalidator interface {
	InvalidateEntity(ctx context.Context, id string) error
	InvalidateAll(ctx context.Context) (int, error)
}

// AdminInvalidateProduct evicts one product and the list entry.
// POST /admin/cache/invalidate/{id}
func (h *Handlers) AdminInvalidateProduct(w http.ResponseWriter, r *http.Request) {
	if h.invalidator == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Caching is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	if err := models.ValidateProductID(id); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	if err := h.invalidator.InvalidateEntity(r.Context(), id); err != nil {
		slog.Error("Admin cache invalidation failed", "product_id", id, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to invalidate cache entry")
		return
	}

	slog.Info("Admin invalidated cached product", "product_id", id, "remote_addr", ratelimit.ClientIP(r))
	h.writeJSONResponse(w, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Cache entries for product '%s' invalidated", id),
	})
}

// AdminInvalidateAll clears the whole product cache namespace.
// POST /admin/cache/invalidate
func (h *Handlers) AdminInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if h.invalidator == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Caching is disabled")
		return
	}

	removed, err := h.invalidator.InvalidateAll(r.Context())
	if err != nil {
		slog.Error("Admin cache clear failed", "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to clear cache")
		return
	}

	slog.Info("Admin cleared product cache", "entries", removed, "remote_addr", ratelimit.ClientIP(r))
	h.writeJSONResponse(w, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Invalidated %d cache entries", removed),
	})
}

// AdminClearLocalBuckets drops this instance's bucket handles. Bucket state
// in the store is untouched.
// POST /admin/ratelimit/clear-local
func (h *Handlers) AdminClearLocalBuckets(w http.ResponseWriter, r *http.Request) {
	enabled, ok := h.interceptor.Capability().(ratelimit.Enabled)
	if !ok {
		h.writeJSONResponse(w, http.StatusOK, models.MessageResponse{
			Message: "Rate limiting is disabled; no local buckets to clear",
		})
		return
	}

	cleared := enabled.Limiter.ClearLocalCache()
	slog.Info("Admin cleared local bucket cache", "entries", cleared)
	h.writeJSONResponse(w, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Cleared %d local bucket entries", cleared),
	})
}

// AdminStatus reports how rate limiting and caching run on this instance.
// GET /admin/status
func (h *Handlers) AdminStatus(w http.ResponseWriter, r *http.Request) {
	capability := h.interceptor.Capability()
	resp := models.AdminStatusResponse{
		InstanceID:       version.GetInfo().InstanceID,
		RateLimiting:     ratelimit.Mode(capability),
		CacheType:        "none",
		InvalidationType: "none",
	}

	switch c := capability.(type) {
	case ratelimit.Enabled:
		resp.LocalBucketCache = c.Limiter.LocalCacheSize()
	case ratelimit.Disabled:
		resp.RateLimitingReason = c.Reason
	}

	if h.config.Cache.Enabled {
		resp.CacheType = h.config.Cache.Type
		resp.CacheName = h.config.Cache.Name
	}
	if h.config.Cache.Enabled && h.config.Invalidation.Enabled {
		resp.InvalidationType = h.config.Invalidation.Type
		resp.Channel = h.config.Invalidation.Channel
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}
