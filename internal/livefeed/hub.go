package livefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tallyboard/internal/metrics"
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("live feed hub is shut down")

// Subscriber is one open feed connection.
type Subscriber struct {
	ID          string
	Transport   string
	ConnectedAt time.Time

	nudge  chan struct{}
	cancel context.CancelFunc
}

// Nudges delivers a value whenever fresh data is known to be available.
// Bursts collapse into one pending value.
func (s *Subscriber) Nudges() <-chan struct{} { return s.nudge }

// Hub keeps track of open subscribers so they can be counted, nudged and
// cancelled together.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]*Subscriber
	closed  bool
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{subs: make(map[string]*Subscriber), metrics: m}
}

// Register adds a subscriber. The returned context is cancelled when the
// parent is, or when the hub shuts down.
func (h *Hub) Register(parent context.Context, transport string) (*Subscriber, context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, ErrHubClosed
	}

	ctx, cancel := context.WithCancel(parent)
	sub := &Subscriber{
		ID:          uuid.NewString(),
		Transport:   transport,
		ConnectedAt: time.Now(),
		nudge:       make(chan struct{}, 1),
		cancel:      cancel,
	}
	h.subs[sub.ID] = sub
	h.metrics.SubscriberJoined(transport)

	logrus.WithFields(logrus.Fields{
		"subscriber_id": sub.ID,
		"transport":     transport,
		"subscribers":   len(h.subs),
	}).Info("Live feed subscriber connected.")
	return sub, ctx, nil
}

// Unregister removes a subscriber and cancels its context. Safe to call twice.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	sub.cancel()
	h.metrics.SubscriberLeft(sub.Transport)

	logrus.WithFields(logrus.Fields{
		"subscriber_id": sub.ID,
		"transport":     sub.Transport,
		"connected_for": time.Since(sub.ConnectedAt).Round(time.Second).String(),
		"subscribers":   len(h.subs),
	}).Info("Live feed subscriber disconnected.")
}

// Nudge asks every subscriber to refresh now.
func (h *Hub) Nudge() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.nudge <- struct{}{}:
		default:
		}
	}
}

// Count returns the number of open subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Shutdown cancels every subscriber and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sub := range h.subs {
		sub.cancel()
	}
	logrus.WithField("subscribers", len(h.subs)).Info("Live feed hub shut down.")
}
