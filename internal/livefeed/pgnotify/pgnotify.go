// Package pgnotify relays committed submissions to live feed subscribers
// through PostgreSQL LISTEN/NOTIFY, so every server instance refreshes its
// subscribers without waiting for the next tick.
package pgnotify

import (
	"context"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Channel is the notification channel shared by publishers and listeners.
const Channel = "tally_updates"

// Publisher sends one notification per committed submission.
type Publisher struct {
	db      *gorm.DB
	channel string
}

func NewPublisher(db *gorm.DB) *Publisher {
	return &Publisher{db: db, channel: Channel}
}

// Notify publishes the center id that just received records.
func (p *Publisher) Notify(ctx context.Context, centerID uint) error {
	return p.db.WithContext(ctx).
		Exec("SELECT pg_notify(?, ?)", p.channel, strconv.FormatUint(uint64(centerID), 10)).Error
}

// Listener holds a dedicated connection that LISTENs on Channel.
type Listener struct {
	l    *pq.Listener
	ping time.Duration
}

// NewListener opens the listening connection. dsn may be a URL or key=value string.
func NewListener(dsn string) (*Listener, error) {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).WithField("event", ev).Warn("Notification listener event.")
		}
	}
	l := pq.NewListener(dsn, time.Second, time.Minute, report)
	if err := l.Listen(Channel); err != nil {
		_ = l.Close()
		return nil, err
	}
	logrus.WithField("channel", Channel).Info("Listening for tally notifications.")
	return &Listener{l: l, ping: 90 * time.Second}, nil
}

// Run calls nudge for every notification until ctx is done. A reconnect
// also nudges since notifications may have been missed meanwhile.
func (ln *Listener) Run(ctx context.Context, nudge func()) error {
	defer ln.l.Close()
	ticker := time.NewTicker(ln.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Notification listener closed.")
			return nil
		case n := <-ln.l.Notify:
			if n != nil {
				logrus.WithFields(logrus.Fields{
					"channel":   n.Channel,
					"center_id": n.Extra,
				}).Debug("Tally notification received.")
			}
			nudge()
		case <-ticker.C:
			if err := ln.l.Ping(); err != nil {
				logrus.WithError(err).Warn("Notification listener ping failed.")
			}
		}
	}
}
