package history

import (
	"context"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis keeps turns in a capped list, so history survives restarts and can
// be shared between bot replicas.
type Redis struct {
	client redis.UniversalClient
	key    string
	limit  int
}

func NewRedis(client redis.UniversalClient, key string, limit int) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Redis{client: client, key: key, limit: limit}
}

func (r *Redis) Add(ctx context.Context, turn Turn) error {
	if time.Time(turn.Timestamp).IsZero() {
		turn.Timestamp = strfmt.DateTime(time.Now().UTC())
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, int64(-r.limit), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Recent(ctx context.Context) ([]Turn, error) {
	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", r.key, err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", r.key, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
