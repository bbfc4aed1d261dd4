package events

import (
	"context"
	"sync"
	"testing"

	"rentkar/pkg/logger"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]pubsub.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: map[string]map[int]pubsub.Handler{}}
}

func (b *fakeBus) Publish(_ context.Context, _ string, _ map[string]any) (int64, error) {
	return 0, nil
}

func (b *fakeBus) Subscribe(channel string, h pubsub.Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	if b.handlers[channel] == nil {
		b.handlers[channel] = map[int]pubsub.Handler{}
	}
	b.handlers[channel][b.nextID] = h
	return b.nextID
}

func (b *fakeBus) Unsubscribe(channel string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[channel], id)
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) emit(channel string, payload []byte) {
	b.mu.Lock()
	handlers := make([]pubsub.Handler, 0, len(b.handlers[channel]))
	for _, h := range b.handlers[channel] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(channel, payload)
	}
}

func (b *fakeBus) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, hs := range b.handlers {
		n += len(hs)
	}
	return n
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT})
}

func TestRelayLifecycle(t *testing.T) {
	bus := newFakeBus()
	relay := NewRelay(bus, nil, ws.NewHub(testLogger()), testLogger())

	relay.Start()
	assert.Equal(t, len(model.DomainChannels()), bus.subscriberCount())

	relay.Stop()
	assert.Zero(t, bus.subscriberCount())
}

func TestRelayDeliversWithoutSinks(t *testing.T) {
	bus := newFakeBus()
	relay := NewRelay(bus, nil, nil, testLogger())
	relay.Start()
	defer relay.Stop()

	// No archive and no hub configured; delivery must still be safe.
	require.NotPanics(t, func() {
		bus.emit(model.ChannelPartnerGPSUpdate, []byte(`{"partnerId":"p1"}`))
		bus.emit(model.ChannelBookingConfirmed, []byte(`{"bookingId":"b1"}`))
	})
}
