package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"productservice/internal/models"
	"productservice/internal/product"
	"productservice/internal/ratelimit"
	"productservice/internal/storage"
	"productservice/internal/version"
	"time"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds product request bodies.
const maxBodyBytes = 1 << 20

// ProductService is the product API served by the handlers.
type ProductService interface {
	List(ctx context.Context) ([]*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, req *models.ProductRequest) (*models.Product, error)
	Update(ctx context.Context, id string, req *models.ProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

// RedisPinger is the part of a Redis client the health check needs.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the product API
type Handlers struct {
	products    ProductService
	storage     storage.Storage
	redis       RedisPinger
	interceptor *ratelimit.Interceptor
	invalidator CacheInvalidator
	config      *models.Config
	startedAt   time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithStorage enables the storage component of the health check.
func WithStorage(s storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.storage = s
	}
}

// WithRedis enables the redis component of the health check.
func WithRedis(p RedisPinger) HandlerOption {
	return func(h *Handlers) {
		h.redis = p
	}
}

// WithInterceptor sets the interceptor guarding product routes.
func WithInterceptor(i *ratelimit.Interceptor) HandlerOption {
	return func(h *Handlers) {
		h.interceptor = i
	}
}

// WithInvalidator enables the admin cache endpoints.
func WithInvalidator(inv CacheInvalidator) HandlerOption {
	return func(h *Handlers) {
		h.invalidator = inv
	}
}

// WithConfig supplies the configuration reported by the admin status endpoint.
func WithConfig(cfg *models.Config) HandlerOption {
	return func(h *Handlers) {
		h.config = cfg
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(products ProductService, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		products:  products,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.interceptor == nil {
		h.interceptor = ratelimit.NewInterceptor(nil, nil, nil)
	}
	if h.config == nil {
		h.config = models.NewDefaultConfig()
	}
	return h
}

// ListProducts handles product list requests
// GET /products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response := models.ListProductsResponse{
		Products:   make([]models.Product, 0, len(products)),
		TotalCount: len(products),
	}
	for _, p := range products {
		response.Products = append(response.Products, *p)
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetProduct handles product detail requests
// GET /products/{id}
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	found, err := h.products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, found)
}

// CreateProduct handles product creation requests
// POST /products
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	created, err := h.products.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, created)
}

// UpdateProduct handles product update requests
// PUT /products/{id}
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.products.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, updated)
}

// DeleteProduct handles product deletion requests
// DELETE /products/{id}
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.ProductMutationResponse{
		ID:      id,
		Message: "Product deleted successfully",
	})
}

// HealthCheck handles health check requests
// GET /health
// Any unhealthy dependency turns the response into a 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Error("Health check: storage ping failed", "error", err)
			response.AddComponent("storage", models.StatusUnhealthy, "Storage is unavailable")
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()); err != nil {
			slog.Error("Health check: redis ping failed", "error", err)
			response.AddComponent("redis", models.StatusUnhealthy, "Redis is unreachable")
		} else {
			response.AddComponent("redis", models.StatusHealthy, "Redis is reachable")
		}
	}

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	status := http.StatusOK
	if response.Status != models.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

func (h *Handlers) decodeProductRequest(w http.ResponseWriter, r *http.Request) (*models.ProductRequest, bool) {
	var req models.ProductRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return nil, false
	}
	return &req, true
}

// writeServiceError maps a product service error onto the response.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		ratelimit.WriteRejection(w, exceeded)
		return
	}

	var svcErr *product.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Product operation failed", "path", r.URL.Path, "error", err)
			h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
			return
		}
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Error())
		return
	}

	slog.Error("Unexpected error", "path", r.URL.Path, "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing else can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}
