package storage

import (
	"context"
	"productservice/internal/models"
	"time"
)

// Storage is the system of record for products. Every backend returns
// copies, so callers may modify results freely.
type Storage interface {
	// Products returns every product ordered by creation time, then id
	Products(ctx context.Context) ([]*models.Product, error)

	// GetProduct returns ErrNotFound for unknown ids
	GetProduct(ctx context.Context, id string) (*models.Product, error)

	// CreateProduct returns ErrAlreadyExists when the id is taken
	CreateProduct(ctx context.Context, product *models.Product) error

	// UpdateProduct returns ErrNotFound for unknown ids
	UpdateProduct(ctx context.Context, product *models.Product) error

	// DeleteProduct returns ErrNotFound for unknown ids
	DeleteProduct(ctx context.Context, id string) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// CacheTTL specifies how long the JSON backend trusts its in-memory copy
	CacheTTL string `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`

	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}
