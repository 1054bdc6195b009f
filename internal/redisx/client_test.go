package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesCommandTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	opts := c.Options()
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)

	// the derived client still talks to the server
	require.NoError(t, c.Ping(context.Background()).Err())
}

func TestExists(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	ctx := context.Background()

	ok, err := Exists(ctx, c, "idem:relay:order:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "idem:relay:order:abc", "1", TTLIdempotency).Err())

	ok, err = Exists(ctx, c, "idem:relay:order:abc")
	require.NoError(t, err)
	assert.True(t, ok)
}
