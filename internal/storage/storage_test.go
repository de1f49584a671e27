package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "tolls.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Load(ctx, "tolls.json")
	assert.ErrorIs(t, err, ErrNotFound)

	doc := []byte(`{"tollsList":[]}`)
	digest, err := s.Store(ctx, "tolls.json", doc)
	require.NoError(t, err)
	assert.Equal(t, ComputeDigest(doc), digest)

	got, err := s.Load(ctx, "tolls.json")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	updated := []byte(`{"tollsList":[{"code":"1"}]}`)
	_, err = s.Store(ctx, "tolls.json", updated)
	require.NoError(t, err)
	got, err = s.Load(ctx, "tolls.json")
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	ok, err = s.Exists(ctx, "tolls.json")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "tolls.json"))
	assert.ErrorIs(t, s.Delete(ctx, "tolls.json"), ErrNotFound)

	_, err = s.Store(ctx, "../escape", doc)
	assert.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, s.Close())
}

func TestMemoryStorage(t *testing.T) {
	exercise(t, NewMemoryStorage(1))
}

func TestMemoryStorageCapacity(t *testing.T) {
	s := NewMemoryStorage(1)
	_, err := s.Store(context.Background(), "big", make([]byte, 2*1024*1024))
	assert.ErrorIs(t, err, ErrStorageFull)

	_, err = s.Store(context.Background(), "small", make([]byte, 1024))
	assert.NoError(t, err)
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	exercise(t, s)

	_, err = os.Stat(filepath.Join(dir, "tolls.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("GEOFENCE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GEOFENCE_TEST_PG_DSN not set")
	}
	s, err := NewPostgresStorage(context.Background(), dsn)
	require.NoError(t, err)
	exercise(t, s)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"tolls.json", "portugal-2025.json"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_USER", "toll")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DB", "zones")
	t.Setenv("PG_SSLMODE", "require")
	assert.Equal(t, "postgres://toll:secret@db:6543/zones?sslmode=require", BuildPostgresDSNFromEnv())
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = Open(context.Background(), "file", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	_, err = Open(context.Background(), "s3", "")
	assert.Error(t, err)

	assert.Equal(t, "abcdef012345", Digest("abcdef0123456789").Short())
}
