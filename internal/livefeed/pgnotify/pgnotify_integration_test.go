//go:build integration

package pgnotify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tallyboard/internal/livefeed/pgnotify"
	"tallyboard/internal/testutil/containers"
)

func TestPublishedNotificationNudgesListener(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	ln, err := pgnotify.NewListener(pg.DSN)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nudged := make(chan struct{}, 4)
	go func() { _ = ln.Run(ctx, func() { nudged <- struct{}{} }) }()

	require.NoError(t, pgnotify.NewPublisher(pg.DB).Notify(ctx, 42))

	select {
	case <-nudged:
	case <-time.After(10 * time.Second):
		t.Fatal("listener was not nudged")
	}
}
