package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"rentkar/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Handler receives the raw JSON payload published on a channel.
type Handler func(channel string, payload []byte)

// Bus is a typed publish/subscribe fan-out. Delivery is at-most-once
// best-effort; in-order within a single channel for a single publisher
// connection.
type Bus interface {
	Publish(ctx context.Context, channel string, payload map[string]any) (int64, error)
	Subscribe(channel string, h Handler) int
	Unsubscribe(channel string, id int)
	Close() error
}

// Publisher is the subset of redis commands the bus needs for publishing.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisBus struct {
	pub Publisher
	sub *redis.Client
	log *logger.Logger

	fan  *fanout
	subs *subscriptions
}

// NewRedisBus builds a bus over two redis connections: one for publishing
// and one dedicated to subscriptions, mirroring redis's requirement that a
// subscriber connection does nothing else.
func NewRedisBus(pub Publisher, sub *redis.Client, log *logger.Logger) *RedisBus {
	return &RedisBus{
		pub:  pub,
		sub:  sub,
		log:  log,
		fan:  newFanout(),
		subs: newSubscriptions(),
	}
}

// Publish JSON-encodes the payload with the channel name and an emission
// timestamp injected, and returns the redis-level receiver count.
// Publish failures propagate to the caller and are not retried.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload map[string]any) (int64, error) {
	msg := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		msg[k] = v
	}
	msg["channel"] = channel
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	receivers, err := b.pub.Publish(ctx, channel, data).Result()
	if err != nil {
		b.log.Error("Failed to publish event", "channel", channel, "error", err)
		return 0, err
	}

	b.log.Debug("Event published", "channel", channel, "receivers", receivers)
	return receivers, nil
}

// Subscribe registers a local handler and returns its subscriber id. The
// first handler for a channel opens the single underlying redis
// subscription; later handlers share it.
func (b *RedisBus) Subscribe(channel string, h Handler) int {
	id, first := b.fan.add(channel, h)
	if first {
		ps := b.sub.Subscribe(context.Background(), channel)
		b.subs.track(channel, ps)
		go b.listen(channel, ps)
		b.log.Info("Subscribed to channel", "channel", channel)
	}
	return id
}

// Unsubscribe removes one local handler. Removing the last handler for a
// channel tears down the underlying redis subscription.
func (b *RedisBus) Unsubscribe(channel string, id int) {
	last := b.fan.remove(channel, id)
	if last {
		b.subs.drop(channel)
		b.log.Info("Unsubscribed from channel", "channel", channel)
	}
}

func (b *RedisBus) listen(channel string, ps *redis.PubSub) {
	for msg := range ps.Channel() {
		b.fan.dispatch(channel, []byte(msg.Payload))
	}
}

// Close tears down every underlying subscription. Registered handlers stop
// receiving; the publisher connection is owned by the caller.
func (b *RedisBus) Close() error {
	return b.subs.closeAll()
}
