// Package livefeed pushes tally snapshots to open dashboard connections on
// a fixed cadence.
package livefeed

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"tallyboard/internal/metrics"
	"tallyboard/internal/tally"
)

// Message types on the wire.
const (
	TypeStats = "stats"
	TypeError = "error"
)

// ErrorMessage is what subscribers see when a tick fails.
const ErrorMessage = "Error fetching statistics"

// Message is one push to a subscriber.
type Message struct {
	Type      string          `json:"type"`
	Data      *tally.Snapshot `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Source produces the snapshot for one tick.
type Source interface {
	Snapshot(ctx context.Context, opts tally.SnapshotOptions) (*tally.Snapshot, error)
}

// Sink delivers messages to one subscriber. A Send error means the
// transport is gone and ends the subscription.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

type Options struct {
	Interval time.Duration
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Feed runs one independent refresh loop per subscriber.
type Feed struct {
	source Source
	hub    *Hub
	opts   Options
}

func New(source Source, hub *Hub, opts Options) *Feed {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Feed{source: source, hub: hub, opts: opts}
}

// Hub returns the subscriber registry the feed reports to.
func (f *Feed) Hub() *Hub { return f.hub }

// Serve registers a subscriber for transport, runs its loop and unregisters
// it when the loop ends.
func (f *Feed) Serve(ctx context.Context, transport string, sink Sink, opts tally.SnapshotOptions) error {
	sub, subCtx, err := f.hub.Register(ctx, transport)
	if err != nil {
		return err
	}
	defer f.hub.Unregister(sub)
	return f.Run(subCtx, sub.Nudges(), sink, opts)
}

// Run sends a snapshot immediately, then on every interval and on every
// nudge, until ctx is done or the sink fails. A failed snapshot sends an
// error message and keeps the loop going. nudges may be nil.
func (f *Feed) Run(ctx context.Context, nudges <-chan struct{}, sink Sink, opts tally.SnapshotOptions) error {
	ticker := time.NewTicker(f.opts.Interval)
	defer ticker.Stop()

	for {
		if err := f.tick(ctx, sink, opts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-nudges:
			ticker.Reset(f.opts.Interval)
		}
	}
}

func (f *Feed) tick(ctx context.Context, sink Sink, opts tally.SnapshotOptions) error {
	msg := Message{Type: TypeStats, Timestamp: f.opts.Now().UTC()}

	snap, err := f.source.Snapshot(ctx, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.WithError(err).WithField("level", opts.Level).Warn("Live feed snapshot failed.")
		msg = Message{Type: TypeError, Message: ErrorMessage, Timestamp: msg.Timestamp}
	} else {
		msg.Data = snap
	}

	if err := sink.Send(ctx, msg); err != nil {
		return err
	}
	f.opts.Metrics.IncFeedSend(msg.Type)
	return nil
}
