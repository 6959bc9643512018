package embedstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against live backends and are skipped unless
// FAIRAUDIT_TEST_REDIS_ADDR or FAIRAUDIT_TEST_POSTGRES_CONN is set.

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := Key{Path: "it/" + uuid.NewString() + ".jpg", Preprocessed: true}

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	first := embedding(0.25, 0.5, 0.75)
	first.IlluminationBucket = "dim"
	require.NoError(t, s.Set(ctx, key, first))
	require.NoError(t, s.Set(ctx, key, embedding(9, 9, 9)))

	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Vector, got.Vector)
	assert.Equal(t, "dim", got.IlluminationBucket)
	assert.True(t, got.Detected)

	r, ok := s.(Resetter)
	require.True(t, ok)
	require.NoError(t, r.Reset(ctx))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("FAIRAUDIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FAIRAUDIT_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(addr, "", 0)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestPostgresStore_Integration(t *testing.T) {
	conn := os.Getenv("FAIRAUDIT_TEST_POSTGRES_CONN")
	if conn == "" {
		t.Skip("FAIRAUDIT_TEST_POSTGRES_CONN not set")
	}
	s, err := NewPostgresStore(conn)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}
