package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New[int]()

	_, ok := r.Get("missing")
	assert.False(t, ok)

	r.Add("b", 2)
	r.Add("a", 1)
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	r.Del("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_GetOrAdd(t *testing.T) {
	r := New[string]()

	var calls int
	var mu sync.Mutex
	factory := func() string {
		mu.Lock()
		calls++
		mu.Unlock()
		return "value"
	}

	v, loaded := r.GetOrAdd("key", factory)
	assert.Equal(t, "value", v)
	assert.False(t, loaded)

	v, loaded = r.GetOrAdd("key", factory)
	assert.Equal(t, "value", v)
	assert.True(t, loaded)
	assert.Equal(t, 1, calls)
}
