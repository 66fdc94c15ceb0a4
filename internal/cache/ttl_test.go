package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestTTL_ExpiresLazily(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	c := NewTTL[string]("test", 5*time.Minute).WithClock(clock.Now)
	key := Key{Chain: "base", Purpose: "scan:latest"}

	c.Set(key, "tokens")

	clock.now = clock.now.Add(4*time.Minute + 59*time.Second)
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "tokens", got)

	clock.now = clock.now.Add(2 * time.Second)
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry must be removed on read")
}

func TestTTL_ExactlyAtTTLIsStillFresh(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	c := NewTTL[int]("test", time.Minute).WithClock(clock.Now)
	key := Key{Chain: "base", Purpose: "gas"}

	c.Set(key, 42)
	clock.now = clock.now.Add(time.Minute)

	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestTTL_KeysAreIsolatedPerChainAndPurpose(t *testing.T) {
	c := NewTTL[string]("test", time.Minute)

	c.Set(Key{Chain: "base", Purpose: "gas"}, "base-gas")
	c.Set(Key{Chain: "optimism", Purpose: "gas"}, "op-gas")
	c.Set(Key{Chain: "base", Purpose: "scan:latest"}, "base-scan")

	got, ok := c.Get(Key{Chain: "optimism", Purpose: "gas"})
	assert.True(t, ok)
	assert.Equal(t, "op-gas", got)

	_, ok = c.Get(Key{Chain: "zora", Purpose: "gas"})
	assert.False(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestTTL_SetWithTTLAndClear(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	c := NewTTL[string]("test", time.Hour).WithClock(clock.Now)
	short := Key{Chain: "base", Purpose: "short"}

	c.SetWithTTL(short, "v", time.Second)
	clock.now = clock.now.Add(2 * time.Second)
	_, ok := c.Get(short)
	assert.False(t, ok)

	c.Set(short, "v")
	c.Delete(short)
	_, ok = c.Get(short)
	assert.False(t, ok)

	c.Set(Key{Chain: "a"}, "1")
	c.Set(Key{Chain: "b"}, "2")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
