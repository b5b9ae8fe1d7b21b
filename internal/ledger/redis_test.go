package ledger

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when REDIS_ADDR points at a reachable server.
func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "ringcall-test-" + uuid.NewString()
	store := NewRedisStore(client, prefix)
	t.Cleanup(func() {
		client.Del(ctx, prefix+":"+string(Events))
		_ = store.Close()
	})

	_, err := store.Load(ctx, Events)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	l := New(store, discardLogger())
	require.NoError(t, Append(ctx, l, Events, record{ID: "e1"}))
	assert.Equal(t, []record{{ID: "e1"}}, Read[record](ctx, l, Events))
}
