package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStable(t *testing.T) {
	a := Key("ipfs://QmA")
	assert.Equal(t, a, Key("ipfs://QmA"))
	assert.NotEqual(t, a, Key("ipfs://QmB"))
	assert.True(t, strings.HasPrefix(a, contentPrefix))
	assert.Len(t, strings.TrimPrefix(a, contentPrefix), 16)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, ok, err := m.Get(ctx, "ipfs://x")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"a":1}`)
	require.NoError(t, m.Set(ctx, "ipfs://x", payload))
	payload[0] = 'X'

	got, ok, err := m.Get(ctx, "ipfs://x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
	assert.Equal(t, 1, m.Len())
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	r, err := NewRedis(url, time.Minute)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	uri := "ipfs://test-" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := r.Get(ctx, uri)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, uri, []byte("payload")))
	got, ok, err := r.Get(ctx, uri)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))
}
