package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"productservice/internal/models"
	"sync"
	"time"
)

// JSONStorage implements the Storage interface using JSON files for persistence.
// It provides an in-memory cache for performance and supports concurrent access.
type JSONStorage struct {
	filePath     string
	cacheTTL     time.Duration
	mu           sync.RWMutex
	data         *JSONData
	lastModified time.Time
	cacheExpiry  time.Time
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	Products    []*models.Product `json:"products"`
	LastUpdated time.Time         `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	cacheTTL := 5 * time.Minute
	if config.CacheTTL != "" {
		if duration, err := time.ParseDuration(config.CacheTTL); err == nil {
			cacheTTL = duration
		}
	}

	storage := &JSONStorage{
		filePath: config.Path,
		cacheTTL: cacheTTL,
	}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	// Load initial data
	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		// Create directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		// Create empty JSON file
		emptyData := &JSONData{
			Products:    []*models.Product{},
			LastUpdated: time.Now(),
		}

		return j.saveData(emptyData)
	}
	return nil
}

// loadData loads data from the JSON file with caching.
// It uses double-checked locking: a fast read-lock path for cache hits,
// and a write-lock slow path with re-validation to prevent TOCTOU races.
func (j *JSONStorage) loadData() error {
	// Fast path: cache is still valid.
	j.mu.RLock()
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		j.mu.RUnlock()
		return nil
	}
	j.mu.RUnlock()

	// Slow path: acquire write lock and re-validate before doing any I/O.
	j.mu.Lock()
	defer j.mu.Unlock()

	// Another goroutine may have loaded while we waited for the write lock.
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}

	// Stat and all subsequent reads are done under the write lock.
	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	// If the file hasn't changed, extend the cache and return.
	if j.data != nil && !info.ModTime().After(j.lastModified) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	j.lastModified = info.ModTime()
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// saveData saves data to the JSON file
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(j.filePath, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Products returns all products
func (j *JSONStorage) Products(ctx context.Context) ([]*models.Product, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	// Return copies to prevent external modification
	products := make([]*models.Product, 0, len(j.data.Products))
	for _, p := range j.data.Products {
		productCopy := *p
		products = append(products, &productCopy)
	}
	sortProducts(products)
	return products, nil
}

// GetProduct retrieves a product by its ID
func (j *JSONStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if i := j.indexOf(id); i >= 0 {
		productCopy := *j.data.Products[i]
		return &productCopy, nil
	}

	return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
}

// CreateProduct appends a new product and persists the file
func (j *JSONStorage) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.indexOf(product.ID) >= 0 {
		return fmt.Errorf("product %s: %w", product.ID, ErrAlreadyExists)
	}

	productCopy := *product
	j.data.Products = append(j.data.Products, &productCopy)
	return j.saveData(j.data)
}

// UpdateProduct replaces an existing product and persists the file
func (j *JSONStorage) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	i := j.indexOf(product.ID)
	if i < 0 {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}

	productCopy := *product
	j.data.Products[i] = &productCopy
	return j.saveData(j.data)
}

// DeleteProduct removes a product and persists the file
func (j *JSONStorage) DeleteProduct(ctx context.Context, id string) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	i := j.indexOf(id)
	if i < 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	j.data.Products = append(j.data.Products[:i], j.data.Products[i+1:]...)
	return j.saveData(j.data)
}

// indexOf must be called with j.mu held.
func (j *JSONStorage) indexOf(id string) int {
	for i, p := range j.data.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Ping verifies the storage backend is reachable and operational.
func (j *JSONStorage) Ping(_ context.Context) error {
	return nil
}

// Close closes the storage connection and cleans up resources
func (j *JSONStorage) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Clear cache
	j.data = nil
	j.cacheExpiry = time.Time{}

	return nil
}
