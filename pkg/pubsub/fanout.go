package pubsub

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// fanout is the in-process handler registry: one entry per channel,
// multiplexing any number of local handlers over a single upstream
// subscription.
type fanout struct {
	mu       sync.RWMutex
	nextID   int
	channels map[string]map[int]Handler
}

func newFanout() *fanout {
	return &fanout{channels: make(map[string]map[int]Handler)}
}

// add registers a handler and reports whether it is the first for the
// channel.
func (f *fanout) add(channel string, h Handler) (id int, first bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	handlers, ok := f.channels[channel]
	if !ok {
		handlers = make(map[int]Handler)
		f.channels[channel] = handlers
	}

	f.nextID++
	handlers[f.nextID] = h
	return f.nextID, !ok
}

// remove deletes a handler and reports whether the channel is now empty.
func (f *fanout) remove(channel string, id int) (last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	handlers, ok := f.channels[channel]
	if !ok {
		return false
	}
	if _, ok := handlers[id]; !ok {
		return false
	}

	delete(handlers, id)
	if len(handlers) == 0 {
		delete(f.channels, channel)
		return true
	}
	return false
}

// dispatch delivers a payload to every handler registered for the channel.
// Handlers run on the caller's goroutine; a panicking handler must not take
// down its siblings, so each call is isolated.
func (f *fanout) dispatch(channel string, payload []byte) {
	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.channels[channel]))
	for _, h := range f.channels[channel] {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() { _ = recover() }()
			h(channel, payload)
		}()
	}
}

func (f *fanout) count(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.channels[channel])
}

// subscriptions tracks the live upstream redis subscriptions by channel.
type subscriptions struct {
	mu   sync.Mutex
	byCh map[string]*redis.PubSub
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byCh: make(map[string]*redis.PubSub)}
}

func (s *subscriptions) track(channel string, ps *redis.PubSub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCh[channel] = ps
}

func (s *subscriptions) drop(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok := s.byCh[channel]; ok {
		_ = ps.Close()
		delete(s.byCh, channel)
	}
}

func (s *subscriptions) closeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for channel, ps := range s.byCh {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.byCh, channel)
	}
	return firstErr
}
