package conversation

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimee/backend/internal/models"
)

// commandLog records what the client would send and answers nothing, so no
// server is needed.
type commandLog struct {
	mu     sync.Mutex
	single []string
	multis [][]string
}

func (l *commandLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (l *commandLog) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.single = append(l.single, cmd.Name())
		return nil
	}
}

func (l *commandLog) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}
		l.multis = append(l.multis, names)
		return nil
	}
}

func newLoggedRedisStore(t *testing.T) (*RedisStore, *commandLog) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	log := &commandLog{}
	client.AddHook(log)
	return NewRedisStore(client), log
}

func TestRedisStoreKeepsActivityIndexOutOfTransactions(t *testing.T) {
	store, log := newLoggedRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", models.ConversationTurn{Message: "hi", Timestamp: epoch}, 10))
	require.NoError(t, store.Delete(ctx, "s1"))

	for _, batch := range log.multis {
		assert.NotContains(t, batch, "zadd")
		assert.NotContains(t, batch, "zrem")
	}
	require.Len(t, log.multis, 1)
	assert.Contains(t, log.multis[0], "rpush")
	assert.Contains(t, log.multis[0], "ltrim")
	assert.Equal(t, []string{"zadd", "del", "zrem"}, log.single)
}
