package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	_, err := c.Get(ctx, "list:skills")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "list:skills", []byte(`[]`), 0))
	got, err := c.Get(ctx, "list:skills")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, c.Delete(ctx, "list:skills", "list:blogs"))
	_, err = c.Get(ctx, "list:skills")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(Options{DefaultTTL: time.Minute})
	require.NoError(t, err)
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)

	_, err = New(Options{RedisURL: "not a url"})
	assert.Error(t, err)
}
