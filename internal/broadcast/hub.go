// Package broadcast fans workday snapshots out to connected live viewers.
// Delivery is best effort: clients poll periodically as a backstop, so a
// slow or dead connection is dropped rather than blocking the publisher.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// EventWorkdayUpdate is the event name clients listen for.
const EventWorkdayUpdate = "workdayUpdate"

// Event is one message on the realtime channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const clientBuffer = 8

type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a viewer and returns its event channel along with a
// cancel function that must be called when the viewer disconnects.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, clientBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish sends the payload to every connected viewer under the given
// event name. Viewers whose buffers are full miss the event.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast payload", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- Event{Event: event, Data: data}:
		default:
			h.logger.Warn("dropping broadcast event for slow client", "event", event)
		}
	}
}

// ClientCount reports the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
