package broadcast

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := newTestHub()

	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	hub.Publish(EventWorkdayUpdate, map[string]string{"state": "open"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case event := <-ch:
			assert.Equal(t, EventWorkdayUpdate, event.Event)
			assert.JSONEq(t, `{"state":"open"}`, string(event.Data))
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	hub := newTestHub()

	_, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.ClientCount())

	cancel()
	assert.Equal(t, 0, hub.ClientCount())

	// Publishing after cancel must not panic or block.
	hub.Publish(EventWorkdayUpdate, nil)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := newTestHub()

	ch, cancel := hub.Subscribe()
	defer cancel()

	// Overfill the buffer; the extra events are dropped, not queued.
	for i := 0; i < clientBuffer+3; i++ {
		hub.Publish(EventWorkdayUpdate, i)
	}

	assert.Equal(t, clientBuffer, len(ch))
}

func TestPublishUnmarshalablePayloadIsDropped(t *testing.T) {
	hub := newTestHub()

	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(EventWorkdayUpdate, make(chan int))

	assert.Equal(t, 0, len(ch))
}
