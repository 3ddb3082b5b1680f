package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aimee/backend/internal/models"
)

const defaultRedisPrefix = "aimee:conversation"

// RedisStore keeps one list per session plus a sorted set of last activity
// used by PurgeBefore. The two live in different cluster slots, so they are
// never written in the same MULTI.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client, prefix: defaultRedisPrefix}
}

func (r *RedisStore) turnsKey(session string) string {
	return fmt.Sprintf("%s:turns:{%s}", r.prefix, session)
}

func (r *RedisStore) activityKey() string {
	return r.prefix + ":activity"
}

func (r *RedisStore) Append(ctx context.Context, session string, turn models.ConversationTurn, maxTurns int) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	key := r.turnsKey(session)
	if _, err := r.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, payload)
		if maxTurns > 0 {
			p.LTrim(ctx, key, int64(-maxTurns), -1)
		}
		return nil
	}); err != nil {
		return err
	}
	return r.redis.ZAdd(ctx, r.activityKey(), redis.Z{Score: float64(turn.Timestamp.UnixMilli()), Member: session}).Err()
}

func (r *RedisStore) Turns(ctx context.Context, session string) ([]models.ConversationTurn, error) {
	raw, err := r.redis.LRange(ctx, r.turnsKey(session), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	turns := make([]models.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *RedisStore) Delete(ctx context.Context, session string) error {
	if err := r.redis.Del(ctx, r.turnsKey(session)).Err(); err != nil {
		return err
	}
	return r.redis.ZRem(ctx, r.activityKey(), session).Err()
}

func (r *RedisStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	// Exclusive bound: a session active exactly at cutoff survives.
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	stale, err := r.redis.ZRangeByScore(ctx, r.activityKey(), &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, err
	}
	for _, session := range stale {
		if err := r.Delete(ctx, session); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
