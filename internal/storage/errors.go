package storage

import "errors"

var (
	// ErrNotFound is returned when no product has the requested id.
	ErrNotFound = errors.New("product not found")
	// ErrAlreadyExists is returned when creating a product whose id is taken.
	ErrAlreadyExists = errors.New("product already exists")
)
