package events

import (
	"context"
	"errors"

	"rentkar/pkg/kafka"
	"rentkar/pkg/logger"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/ws"
)

// Relay bridges the in-process event bus to the two delivery sinks that
// outlive a single request: the Kafka archive and the tracking websocket
// hub. It owns its bus subscriptions and drops them on Stop.
type Relay struct {
	bus      pubsub.Bus
	archiver *kafka.Archiver
	hub      *ws.Hub
	log      *logger.Logger

	subs map[string]int
}

func NewRelay(bus pubsub.Bus, archiver *kafka.Archiver, hub *ws.Hub, log *logger.Logger) *Relay {
	return &Relay{
		bus:      bus,
		archiver: archiver,
		hub:      hub,
		log:      log,
		subs:     map[string]int{},
	}
}

// Start subscribes to every domain channel. All events flow to the
// archive when one is configured; GPS updates additionally broadcast to
// connected tracking sockets.
func (r *Relay) Start() {
	for _, channel := range model.DomainChannels() {
		channel := channel
		r.subs[channel] = r.bus.Subscribe(channel, func(_ string, payload []byte) {
			r.deliver(channel, payload)
		})
	}

	r.log.Info("event relay started",
		"channels", len(r.subs),
		"archiving", r.archiver != nil,
	)
}

func (r *Relay) Stop() {
	for channel, id := range r.subs {
		r.bus.Unsubscribe(channel, id)
	}
	r.subs = map[string]int{}
	r.log.Info("event relay stopped")
}

func (r *Relay) deliver(channel string, payload []byte) {
	if r.archiver != nil {
		if err := r.archiver.Archive(context.Background(), channel, payload); err != nil && !errors.Is(err, kafka.ErrArchiverClosed) {
			r.log.Warn("failed to archive event",
				"channel", channel,
				"error", err,
			)
		}
	}

	if channel == model.ChannelPartnerGPSUpdate && r.hub != nil {
		r.hub.Broadcast(payload)
	}
}
