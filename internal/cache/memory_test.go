package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart:s1", []byte(`{"lines":[]}`), time.Hour))

	got, err := store.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"lines":[]}`), got)
}

func TestMemorySessionStoreMissReturnsNilNil(t *testing.T) {
	store := NewMemorySessionStore()

	got, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	current := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart:s1", []byte("x"), 30*time.Minute))

	current = current.Add(29 * time.Minute)
	got, err := store.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	current = current.Add(2 * time.Minute)
	got, err = store.Get(ctx, "cart:s1")
	require.NoError(t, err)
	assert.Nil(t, got, "entry past its TTL must read as a miss")
}

func TestMemorySessionStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", original, 0))
	original[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'q'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemorySessionStoreDelete(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, store.Delete(ctx, "k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
