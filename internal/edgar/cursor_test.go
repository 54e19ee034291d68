// internal/edgar/cursor_test.go
package edgar

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCursorStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisCursorStore(client)
	ctx := context.Background()

	val, err := store.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.Empty(t, val, "missing cursor is empty, not an error")

	require.NoError(t, store.Set(ctx, "0000320193", `"etag-v1"`))

	val, err = store.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, `"etag-v1"`, val)

	// Keys are namespaced per issuer.
	assert.True(t, mr.Exists("edgar:cursor:0000320193"))

	require.NoError(t, store.Set(ctx, "0000320193", `"etag-v2"`))
	val, err = store.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, `"etag-v2"`, val, "last write wins")
}
