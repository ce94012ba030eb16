package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventsChannel is the pub/sub channel instances share.
const EventsChannel = "arena_events"

// Envelope is one relayed event. PlayerID 0 means every client.
type Envelope struct {
	Origin   string          `json:"origin"`
	PlayerID int64           `json:"player_id,omitempty"`
	Message  json.RawMessage `json:"message"`
}

// RedisFanout relays hub events between server instances over Redis pub/sub.
// Publish never blocks the caller; envelopes are queued and written by Run.
type RedisFanout struct {
	rdb    *redis.Client
	origin string
	out    chan Envelope
	log    *zap.Logger
}

func NewRedisFanout(rdb *redis.Client, log *zap.Logger) *RedisFanout {
	return &RedisFanout{
		rdb:    rdb,
		origin: uuid.NewString(),
		out:    make(chan Envelope, 1024),
		log:    log.Named("fanout"),
	}
}

func (f *RedisFanout) Publish(env Envelope) {
	env.Origin = f.origin
	select {
	case f.out <- env:
	default:
		f.log.Warn("fanout queue full, dropping event", zap.Int64("player_id", env.PlayerID))
	}
}

// Run publishes queued envelopes and delivers envelopes from other instances
// to hub until ctx is done.
func (f *RedisFanout) Run(ctx context.Context, hub *Hub) {
	pubsub := f.rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()
	in := pubsub.Channel()

	f.log.Info("events subscriber started", zap.String("channel", EventsChannel), zap.String("origin", f.origin))
	for {
		select {
		case <-ctx.Done():
			return

		case env := <-f.out:
			payload, err := json.Marshal(env)
			if err != nil {
				f.log.Error("invalid envelope", zap.Error(err))
				continue
			}
			if err := f.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
				f.log.Error("publish failed", zap.Error(err))
			}

		case msg, ok := <-in:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.log.Warn("invalid event payload", zap.Error(err))
				continue
			}
			if env.Origin == f.origin {
				continue
			}
			hub.deliver(env)
		}
	}
}
