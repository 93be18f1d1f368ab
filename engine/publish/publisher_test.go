package publish

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHubSubscribePublish(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(context.Background(), Update{IncidentUID: "uid-1", Status: "detected", EventType: "detected", Seq: 1})

	update := <-updates
	require.Equal(t, "uid-1", update.IncidentUID)
	require.Equal(t, int64(1), update.Seq)
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.Publish(context.Background(), Update{IncidentUID: "uid-1", Seq: 1})

	require.Equal(t, "uid-1", (<-first).IncidentUID)
	require.Equal(t, "uid-1", (<-second).IncidentUID)
}

func TestHubDropsOldestWhenSlow(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer without draining it.
	total := subscriberBuffer + 10
	for i := 1; i <= total; i++ {
		hub.Publish(context.Background(), Update{IncidentUID: "uid-1", Seq: int64(i)})
	}

	// The oldest updates are gone; the newest survives.
	received := make([]Update, 0, subscriberBuffer)
	for len(updates) > 0 {
		received = append(received, <-updates)
	}
	require.Len(t, received, subscriberBuffer)
	require.Equal(t, int64(total), received[len(received)-1].Seq)
	require.Greater(t, received[0].Seq, int64(1))
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe()
	cancel()

	_, ok := <-updates
	require.False(t, ok)

	// Publishing after cancellation must not panic.
	hub.Publish(context.Background(), Update{IncidentUID: "uid-1", Seq: 1})

	// Cancel is idempotent.
	cancel()
}

func TestFanOut(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe()
	defer cancel()

	fan := FanOut{Nop{}, hub}
	for i := 1; i <= 3; i++ {
		fan.Publish(context.Background(), Update{IncidentUID: fmt.Sprintf("uid-%d", i), Seq: int64(i)})
	}
	require.Len(t, updates, 3)
}
