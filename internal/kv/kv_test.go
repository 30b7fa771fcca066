package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	// Returned slices must not alias stored data.
	v[0] = 'x'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "v1", string(again))

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got sample
	ok, err := GetJSON(ctx, m, "s", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, m, "s", sample{Name: "a", Count: 2}))
	ok, err = GetJSON(ctx, m, "s", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample{Name: "a", Count: 2}, got)

	require.NoError(t, m.Set(ctx, "bad", []byte("{")))
	_, err = GetJSON(ctx, m, "bad", &got)
	assert.Error(t, err)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := Namespace(m, "user:a")
	b := Namespace(m, "user:b")

	require.NoError(t, a.Set(ctx, "answerHistory", []byte("a")))
	require.NoError(t, b.Set(ctx, "answerHistory", []byte("b")))

	va, _, _ := a.Get(ctx, "answerHistory")
	vb, _, _ := b.Get(ctx, "answerHistory")
	assert.Equal(t, "a", string(va))
	assert.Equal(t, "b", string(vb))

	keys, err := m.Keys(ctx, "user:a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:a/answerHistory"}, keys)

	assert.Same(t, Store(m), Namespace(m, ""))
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("STUDYHUB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STUDYHUB_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	key := "studyhub-test/" + t.Name()
	require.NoError(t, r.Set(ctx, key, []byte("v")))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
	require.NoError(t, r.Delete(ctx, key))
	_, ok, err = r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
