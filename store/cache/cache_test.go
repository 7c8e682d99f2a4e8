package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_BasicOperations(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute, CleanupInterval: time.Minute, MaxItems: 100})
	defer c.Close()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c.Set(ctx, "key1", "value1")

		val, ok := c.Get(ctx, "key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := c.Get(ctx, "nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		c.Set(ctx, "key2", "original")
		c.Set(ctx, "key2", "updated")

		val, ok := c.Get(ctx, "key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, "key3", "value3")
		c.Delete(ctx, "key3")

		_, ok := c.Get(ctx, "key3")
		assert.False(t, ok)
	})
}

func TestCache_Expiration(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute, CleanupInterval: time.Minute, MaxItems: 100})
	defer c.Close()
	ctx := context.Background()

	c.SetWithTTL(ctx, "expiring", "value", 50*time.Millisecond)

	val, ok := c.Get(ctx, "expiring")
	assert.True(t, ok)
	assert.Equal(t, "value", val)

	time.Sleep(60 * time.Millisecond)

	val, ok = c.Get(ctx, "expiring")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestCache_Eviction(t *testing.T) {
	c := New(Config{DefaultTTL: time.Minute, CleanupInterval: time.Minute, MaxItems: 3})
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", 1)
	c.Set(ctx, "key2", 2)
	c.Set(ctx, "key3", 3)
	assert.Equal(t, 3, c.Size())

	// Access key1 to make it recently used.
	c.Get(ctx, "key1")

	// Adding a fourth entry evicts the least recently used (key2).
	c.Set(ctx, "key4", 4)
	assert.Equal(t, 3, c.Size())

	_, ok := c.Get(ctx, "key2")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "key1")
	assert.True(t, ok)
}

func TestCache_OnEviction(t *testing.T) {
	var evicted []string
	c := New(Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Minute,
		MaxItems:        2,
		OnEviction:      func(key string, _ any) { evicted = append(evicted, key) },
	})
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Set(ctx, "c", 3)

	assert.Equal(t, []string{"a"}, evicted)
}
