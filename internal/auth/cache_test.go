package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCache_SetGet(t *testing.T) {
	c := newIdentityCache(time.Minute)
	defer c.Close()

	_, ok := c.Get("tok1")
	assert.False(t, ok, "empty cache has no verdicts")

	c.Set("tok1", &User{Name: "alice"})
	user, ok := c.Get("tok1")
	require.True(t, ok)
	assert.Equal(t, "alice", user.Name)

	_, ok = c.Get("tok2")
	assert.False(t, ok, "verdicts are per token")
}

func TestIdentityCache_NegativeVerdict(t *testing.T) {
	c := newIdentityCache(time.Minute)
	defer c.Close()

	c.Set("bogus", nil)

	user, ok := c.Get("bogus")
	assert.True(t, ok, "a rejection is a cached verdict")
	assert.Nil(t, user)
}

func TestIdentityCache_Expiry(t *testing.T) {
	c := newIdentityCache(10 * time.Millisecond)
	defer c.Close()

	c.Set("tok1", &User{Name: "alice"})
	_, ok := c.Get("tok1")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get("tok1")
	assert.False(t, ok, "expired verdicts are dropped on access")
	assert.Zero(t, c.Size())
}

func TestIdentityCache_UpdateRefreshes(t *testing.T) {
	c := newIdentityCache(time.Minute)
	defer c.Close()

	c.Set("tok1", &User{Name: "alice"})
	c.Set("tok1", &User{Name: "alice", Groups: []string{"researchers"}})

	assert.Equal(t, 1, c.Size())
	user, ok := c.Get("tok1")
	require.True(t, ok)
	assert.Equal(t, []string{"researchers"}, user.Groups)
}

func TestIdentityCache_LRUEviction(t *testing.T) {
	c := newIdentityCache(time.Minute)
	defer c.Close()
	c.maxSize = 2

	c.Set("tok1", &User{Name: "u1"})
	c.Set("tok2", &User{Name: "u2"})

	// Touch tok1 so tok2 is the eviction candidate.
	_, ok := c.Get("tok1")
	require.True(t, ok)

	c.Set("tok3", &User{Name: "u3"})

	assert.Equal(t, 2, c.Size())
	_, ok = c.Get("tok2")
	assert.False(t, ok, "least recently used verdict is evicted")
	_, ok = c.Get("tok1")
	assert.True(t, ok)
	_, ok = c.Get("tok3")
	assert.True(t, ok)
}

func TestIdentityCache_Close(t *testing.T) {
	c := newIdentityCache(time.Minute)
	c.Set("tok1", &User{Name: "alice"})

	c.Close()

	assert.Zero(t, c.Size())
}

func TestIdentityCache_ConcurrentAccess(t *testing.T) {
	c := newIdentityCache(time.Minute)
	defer c.Close()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				token := fmt.Sprintf("tok-%d-%d", i, j%10)
				c.Set(token, &User{Name: "user"})
				c.Get(token)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.Len(t, hashToken("abc"), 64)
}
