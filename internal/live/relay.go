package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis channel frames travel on between processes.
const RelayChannel = "live:frames"

const publishTimeout = 2 * time.Second

type envelope struct {
	UserID string          `json:"userId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"payload,omitempty"`
}

// RedisRelay is a Pusher that publishes frames on Redis so the process
// holding the recipient's connection delivers them. Run must be running on
// every process for delivery to happen.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
}

// NewRedisRelay returns a relay delivering into hub.
func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub}
}

// Push publishes f. If Redis is unreachable the frame is delivered locally.
func (r *RedisRelay) Push(ctx context.Context, userID string, f Frame) {
	data, err := json.Marshal(f.Payload)
	if err != nil {
		slog.Warn("live: encode frame failed", "type", f.Type, "err", err)
		return
	}
	body, _ := json.Marshal(envelope{UserID: userID, Type: f.Type, Data: data})

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(pubCtx, RelayChannel, body).Err(); err != nil {
		slog.Warn("live: publish failed, delivering locally", "err", err)
		r.hub.Push(ctx, userID, f)
	}
}

// Run delivers relayed frames to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("live: bad relay envelope", "err", err)
				continue
			}
			r.hub.Push(ctx, env.UserID, Frame{Type: env.Type, Payload: env.Data})
		}
	}
}
