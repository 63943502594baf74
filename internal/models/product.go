// Package models - Product catalogue entity and request validation.
// This file defines the product record persisted by storage and the request
// payloads accepted by the product API.
//
// Design Decisions:
// - Product IDs are UUIDs generated by the service, never by the caller
// - Requests are normalized (trimmed) before validation
// - Price is stored as a float to match the catalogue's existing data
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxProductNameLength        = 200
	MaxProductTitleLength       = 300
	MaxProductDescriptionLength = 5000
)

// Product is the system-of-record entity behind every cached read.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductRequest is the payload for both create and update.
type ProductRequest struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	Image       string  `json:"image,omitempty"`
}

func (r *ProductRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Image = strings.TrimSpace(r.Image)
}

func (r *ProductRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > MaxProductNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxProductNameLength)
	}

	if r.Title == "" {
		return errors.New("title is required")
	}
	if len(r.Title) > MaxProductTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxProductTitleLength)
	}

	if r.Description == "" {
		return errors.New("description is required")
	}
	if len(r.Description) > MaxProductDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxProductDescriptionLength)
	}

	if r.Price < 0 {
		return errors.New("price cannot be negative")
	}

	return nil
}

// NewProduct builds a fresh product with a generated id from a validated request.
func NewProduct(r *ProductRequest, now time.Time) *Product {
	p := &Product{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	p.Apply(r, now)
	return p
}

// Apply copies the mutable fields of r onto p and bumps UpdatedAt.
func (p *Product) Apply(r *ProductRequest, now time.Time) {
	p.Name = r.Name
	p.Title = r.Title
	p.Description = r.Description
	p.Price = r.Price
	p.Category = r.Category
	p.Image = r.Image
	p.UpdatedAt = now
}

func (p *Product) Validate() error {
	if err := ValidateProductID(p.ID); err != nil {
		return err
	}
	req := ProductRequest{
		Name:        p.Name,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
	}
	return req.Validate()
}

// ValidateProductID rejects anything that is not a canonical UUID.
func ValidateProductID(id string) error {
	if id == "" {
		return errors.New("product ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid product ID %q: %w", id, err)
	}
	return nil
}
