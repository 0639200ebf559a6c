package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "raw-data/year=2025/month=08/file.parquet", []byte("payload"), "application/octet-stream"))

	data, err := s.Get(ctx, "raw-data/year=2025/month=08/file.parquet")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocalGetMissingKey(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalListFiltersByPrefix(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "raw-data/year=2025/month=07/a.parquet", []byte("a"), ""))
	require.NoError(t, s.Put(ctx, "raw-data/year=2025/month=08/b.parquet", []byte("b"), ""))
	require.NoError(t, s.Put(ctx, "consolidated/c.parquet", []byte("c"), ""))

	keys, err := s.List(ctx, "raw-data/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"raw-data/year=2025/month=07/a.parquet",
		"raw-data/year=2025/month=08/b.parquet",
	}, keys)
}

func TestLocalDelete(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state.json", []byte("{}"), "application/json"))
	require.NoError(t, s.Delete(ctx, "state.json"))

	_, err = s.Get(ctx, "state.json")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "state.json"))
}
