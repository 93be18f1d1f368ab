// Package publish exposes the state-change feed. Delivery is best-effort and
// at-least-once; subscribers must tolerate duplicates and cross-incident
// reordering.
package publish

import (
	"context"
	"log/slog"
	"sync"
)

// Update is one committed lifecycle transition.
type Update struct {
	IncidentUID string `json:"incident_uid"`
	Status      string `json:"status"`
	EventType   string `json:"event_type"`
	Summary     string `json:"summary,omitempty"`
	Seq         int64  `json:"seq"`
}

// Publisher receives every committed transition. Implementations must not
// block the orchestration pipeline; failures are the publisher's problem.
type Publisher interface {
	Publish(ctx context.Context, update Update)
}

// Nop discards all updates.
type Nop struct{}

func (Nop) Publish(context.Context, Update) {}

// FanOut forwards updates to several publishers.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, update Update) {
	for _, p := range f {
		p.Publish(ctx, update)
	}
}

// Log writes updates to the structured log, useful in dev mode.
type Log struct{}

func (Log) Publish(_ context.Context, update Update) {
	slog.Info("publish: incident transition",
		"incident_uid", update.IncidentUID,
		"status", update.Status,
		"event_type", update.EventType,
		"seq", update.Seq)
}

// subscriberBuffer bounds each subscriber channel. A slow subscriber loses
// the oldest update rather than stalling the hub.
const subscriberBuffer = 64

// Hub is an in-process publisher with channel subscribers, backing the SSE
// feed of the API.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Update
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Update)}
}

// Subscribe registers a subscriber. The cancel func must be called when the
// subscriber goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Update, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers to every subscriber without blocking: when a buffer is
// full the oldest update is dropped to make room.
func (h *Hub) Publish(_ context.Context, update Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}
