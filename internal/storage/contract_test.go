package storage

import (
	"context"
	"fmt"
	"productservice/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(name string, created time.Time) *models.Product {
	return &models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Title:       "Title of " + name,
		Description: "Description of " + name,
		Price:       12.5,
		Category:    "kitchen",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// runStorageContract exercises the behaviour every backend must share.
func runStorageContract(t *testing.T, s Storage) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("empty list", func(t *testing.T) {
		products, err := s.Products(ctx)
		require.NoError(t, err)
		assert.NotNil(t, products)
		assert.Empty(t, products)
	})

	first := newTestProduct("kettle", base)
	second := newTestProduct("toaster", base.Add(time.Minute))

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, s.CreateProduct(ctx, second))
		require.NoError(t, s.CreateProduct(ctx, first))

		got, err := s.GetProduct(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Name, got.Name)
		assert.Equal(t, first.Title, got.Title)
		assert.Equal(t, first.Description, got.Description)
		assert.Equal(t, first.Price, got.Price)
		assert.Equal(t, first.Category, got.Category)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt), "created_at round-trips")
	})

	t.Run("duplicate create", func(t *testing.T) {
		err := s.CreateProduct(ctx, first)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		products, err := s.Products(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, first.ID, products[0].ID)
		assert.Equal(t, second.ID, products[1].ID)
	})

	t.Run("results are copies", func(t *testing.T) {
		got, err := s.GetProduct(ctx, first.ID)
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := s.GetProduct(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "kettle", again.Name)
	})

	t.Run("update", func(t *testing.T) {
		updated := *first
		updated.Title = "Cordless Kettle"
		updated.Price = 45
		updated.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.UpdateProduct(ctx, &updated))

		got, err := s.GetProduct(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cordless Kettle", got.Title)
		assert.Equal(t, 45.0, got.Price)
		assert.True(t, updated.UpdatedAt.Equal(got.UpdatedAt))

		missing := newTestProduct("ghost", base)
		assert.ErrorIs(t, s.UpdateProduct(ctx, missing), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteProduct(ctx, second.ID))

		_, err := s.GetProduct(ctx, second.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteProduct(ctx, second.ID), ErrNotFound)

		products, err := s.Products(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})

	t.Run("concurrent creates", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p := newTestProduct(fmt.Sprintf("item-%d", i), base.Add(time.Duration(i+2)*time.Minute))
				assert.NoError(t, s.CreateProduct(ctx, p))
			}(i)
		}
		wg.Wait()

		products, err := s.Products(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 11)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
