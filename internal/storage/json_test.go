package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONStorage(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "test.json")

	storage, err := NewJSONStorage(Config{Type: "json", Path: filePath, CacheTTL: "1m"})
	require.NoError(t, err)
	require.NotNil(t, storage)
	defer storage.Close()

	// Check that file was created
	assert.FileExists(t, filePath)
	assert.Equal(t, time.Minute, storage.cacheTTL)
}

func TestNewJSONStorage_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	filePath := filepath.Join(t.TempDir(), "subdir", "test.json")

	storage, err := NewJSONStorage(Config{Type: "json", Path: filePath})
	require.NoError(t, err)
	defer storage.Close()

	dirInfo, err := os.Stat(filepath.Dir(filePath))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fileInfo.Mode().Perm())
}

func TestNewJSONStorage_InvalidPath(t *testing.T) {
	_, err := NewJSONStorage(Config{Type: "json", Path: "/"})
	assert.Error(t, err)
}

func TestJSONStorage_Contract(t *testing.T) {
	storage, err := NewJSONStorage(Config{Type: "json", Path: filepath.Join(t.TempDir(), "products.json")})
	require.NoError(t, err)
	defer storage.Close()

	runStorageContract(t, storage)
}

func TestJSONStorage_PersistsAcrossInstances(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "products.json")
	ctx := context.Background()

	first, err := NewJSONStorage(Config{Type: "json", Path: filePath})
	require.NoError(t, err)
	p := newTestProduct("kettle", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, first.CreateProduct(ctx, p))
	require.NoError(t, first.Close())

	second, err := NewJSONStorage(Config{Type: "json", Path: filePath})
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "kettle", got.Name)
}

func TestJSONStorage_CorruptFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(filePath, []byte("{not json"), 0600))

	_, err := NewJSONStorage(Config{Type: "json", Path: filePath})
	assert.ErrorContains(t, err, "failed to unmarshal JSON")
}
