package handler

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	apperrors "rentkar/pkg/errors"
	httputil "rentkar/pkg/http"
	"rentkar/pkg/logger"
	"rentkar/pkg/model"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// FeedHandler exposes the event bus to external consumers: an SSE stream
// for domain events and a websocket fire-hose for live GPS positions.
type FeedHandler struct {
	bus       pubsub.Bus
	hub       *ws.Hub
	heartbeat time.Duration
	log       *logger.Logger

	upgrader websocket.Upgrader
}

func NewFeedHandler(bus pubsub.Bus, hub *ws.Hub, heartbeat time.Duration, log *logger.Logger) *FeedHandler {
	return &FeedHandler{
		bus:       bus,
		hub:       hub,
		heartbeat: heartbeat,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *FeedHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/events", h.Stream)
	router.GET("/api/v1/tracking/ws", h.TrackingSocket)
}

// Stream serves an SSE feed of domain events. ?channel= narrows the feed
// to a single channel; without it every domain channel is forwarded. The
// subscription is torn down the moment the client disconnects, which also
// closes the underlying delivery when this was the channel's last
// subscriber.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		if writeErr := httputil.WriteError(w, apperrors.Internal("Streaming unsupported by connection", nil)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Stream", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	channels := model.DomainChannels()
	if requested := r.URL.Query().Get("channel"); requested != "" {
		if !slices.Contains(channels, requested) {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput(fmt.Sprintf("unknown channel: %s", requested))); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Stream", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		channels = []string{requested}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan []byte, 64)
	handler := func(channel string, payload []byte) {
		select {
		case events <- payload:
		default:
			// Slow consumer; drop rather than block the dispatcher.
		}
	}

	type subscription struct {
		channel string
		id      int
	}
	subs := make([]subscription, 0, len(channels))
	for _, channel := range channels {
		subs = append(subs, subscription{channel: channel, id: h.bus.Subscribe(channel, handler)})
	}
	defer func() {
		for _, sub := range subs {
			h.bus.Unsubscribe(sub.channel, sub.id)
		}
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"channels\": %d}\n\n", len(channels))
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// TrackingSocket upgrades to a websocket and attaches the client to the
// broadcast hub. GPS updates reach it through the relay; the read loop
// exists only to notice the client going away.
func (h *FeedHandler) TrackingSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	h.hub.Add(clientID, conn)
	h.log.Info("tracking client connected", "client_id", clientID, "clients", h.hub.Count())

	defer func() {
		h.hub.Remove(clientID)
		h.log.Info("tracking client disconnected", "client_id", clientID, "clients", h.hub.Count())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
