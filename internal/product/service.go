// Package product implements the catalogue operations. Reads go through the
// shared result cache; every successful mutation evicts the affected entries
// locally and announces itself once on the invalidation bus.
package product

import (
	"context"
	"errors"
	"log/slog"
	"productservice/internal/cache"
	"productservice/internal/invalidation"
	"productservice/internal/models"
	"productservice/internal/ratelimit"
	"productservice/internal/storage"
	"time"
)

// ResultCache is the part of cache.Cache the service uses.
type ResultCache interface {
	Get(ctx context.Context, id string, dst interface{}) bool
	Put(ctx context.Context, id string, value interface{})
	Evict(ctx context.Context, ids ...string) error
}

// Publisher announces mutations to other instances without blocking.
type Publisher interface {
	PublishAsync(e invalidation.Event)
}

type Options struct {
	// Cache is optional; without it every read goes to storage.
	Cache ResultCache
	// Publisher is optional; without it other instances rely on the TTL.
	Publisher Publisher
	// Interceptor is optional; without it operations are never limited.
	Interceptor *ratelimit.Interceptor
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service handles product business logic
type Service struct {
	storage     storage.Storage
	cache       ResultCache
	publisher   Publisher
	interceptor *ratelimit.Interceptor
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new product service with the given storage backend
func NewService(store storage.Storage, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interceptor := opts.Interceptor
	if interceptor == nil {
		interceptor = ratelimit.NewInterceptor(nil, nil, logger)
	}
	return &Service{
		storage:     store,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		interceptor: interceptor,
		logger:      logger.With("component", "product"),
		now:         now,
	}
}

// List returns every product, served from the aggregate cache entry when present.
func (s *Service) List(ctx context.Context) ([]*models.Product, error) {
	return ratelimit.Guard(ctx, s.interceptor, OpList, func(ctx context.Context) ([]*models.Product, error) {
		var products []*models.Product
		if s.cache != nil && s.cache.Get(ctx, cache.AllKey, &products) {
			return products, nil
		}

		products, err := s.storage.Products(ctx)
		if err != nil {
			return nil, NewInternalError("failed to list products", err)
		}
		if s.cache != nil {
			s.cache.Put(ctx, cache.AllKey, products)
		}
		return products, nil
	})
}

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	return ratelimit.Guard(ctx, s.interceptor, OpGet, func(ctx context.Context) (*models.Product, error) {
		if err := models.ValidateProductID(id); err != nil {
			return nil, NewInvalidRequestError("invalid product ID", err)
		}

		var product models.Product
		if s.cache != nil && s.cache.Get(ctx, id, &product) {
			return &product, nil
		}

		found, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Put(ctx, id, found)
		}
		return found, nil
	})
}

// Create validates req and stores a new product.
func (s *Service) Create(ctx context.Context, req *models.ProductRequest) (*models.Product, error) {
	return ratelimit.Guard(ctx, s.interceptor, OpCreate, func(ctx context.Context) (*models.Product, error) {
		req.Normalize()
		if err := req.Validate(); err != nil {
			return nil, NewValidationError("invalid product", err)
		}

		product := models.NewProduct(req, s.now().UTC())
		if err := s.storage.CreateProduct(ctx, product); err != nil {
			return nil, NewInternalError("failed to create product", err)
		}

		s.logger.Info("Product created", "product_id", product.ID)
		s.afterMutation(ctx, invalidation.Created(product.ID))
		return product, nil
	})
}

// Update replaces the mutable fields of an existing product.
func (s *Service) Update(ctx context.Context, id string, req *models.ProductRequest) (*models.Product, error) {
	return ratelimit.Guard(ctx, s.interceptor, OpUpdate, func(ctx context.Context) (*models.Product, error) {
		if err := models.ValidateProductID(id); err != nil {
			return nil, NewInvalidRequestError("invalid product ID", err)
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return nil, NewValidationError("invalid product", err)
		}

		// Read from storage, never the cache, so the update starts from the
		// record of truth.
		product, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		product.Apply(req, s.now().UTC())

		if err := s.storage.UpdateProduct(ctx, product); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, NewProductNotFoundError(id)
			}
			return nil, NewInternalError("failed to update product", err)
		}

		s.logger.Info("Product updated", "product_id", id)
		s.afterMutation(ctx, invalidation.Updated(id))
		return product, nil
	})
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := ratelimit.Guard(ctx, s.interceptor, OpDelete, func(ctx context.Context) (struct{}, error) {
		if err := models.ValidateProductID(id); err != nil {
			return struct{}{}, NewInvalidRequestError("invalid product ID", err)
		}

		if err := s.storage.DeleteProduct(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return struct{}{}, NewProductNotFoundError(id)
			}
			return struct{}{}, NewInternalError("failed to delete product", err)
		}

		s.logger.Info("Product deleted", "product_id", id)
		s.afterMutation(ctx, invalidation.Deleted(id))
		return struct{}{}, nil
	})
	return err
}

func (s *Service) load(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.storage.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewProductNotFoundError(id)
		}
		return nil, NewInternalError("failed to get product", err)
	}
	return product, nil
}

// afterMutation runs once the mutation is committed. Nothing here can fail
// the mutation: eviction errors are logged and the entries expire with the
// cache TTL.
func (s *Service) afterMutation(ctx context.Context, e invalidation.Event) {
	if s.cache != nil {
		if err := s.cache.Evict(ctx, e.EntityID, cache.AllKey); err != nil {
			s.logger.Warn("Failed to evict cached product", "product_id", e.EntityID, "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishAsync(e)
	}
}
