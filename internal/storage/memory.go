package storage

import (
	"context"
	"fmt"
	"productservice/internal/models"
	"sort"
	"sync"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	products map[string]*models.Product
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		products: make(map[string]*models.Product),
	}, nil
}

// Products returns all products
func (m *MemoryStorage) Products(ctx context.Context) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		// Return a copy to prevent external modification
		productCopy := *p
		products = append(products, &productCopy)
	}
	sortProducts(products)

	return products, nil
}

// GetProduct retrieves a product by its ID
func (m *MemoryStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.products[id]
	if !exists {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	productCopy := *p
	return &productCopy, nil
}

// CreateProduct stores a new product
func (m *MemoryStorage) CreateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[product.ID]; exists {
		return fmt.Errorf("product %s: %w", product.ID, ErrAlreadyExists)
	}

	// Store a copy to prevent external modification
	productCopy := *product
	m.products[product.ID] = &productCopy
	return nil
}

// UpdateProduct replaces an existing product
func (m *MemoryStorage) UpdateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[product.ID]; !exists {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}

	productCopy := *product
	m.products[product.ID] = &productCopy
	return nil
}

// DeleteProduct removes a product by its ID
func (m *MemoryStorage) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.products[id]; !exists {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	delete(m.products, id)
	return nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up resources (no-op for memory storage)
func (m *MemoryStorage) Close() error {
	return nil
}

// sortProducts orders by creation time, oldest first, with id as tie-breaker.
func sortProducts(products []*models.Product) {
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].ID < products[j].ID
	})
}
