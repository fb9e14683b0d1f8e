//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tallyboard/internal/testutil/containers"
)

func TestRedisStoreFixedWindow(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := NewRedisStore(rc.Client, 2, time.Second)

	for i := 0; i < 2; i++ {
		d, err := store.Admit(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1-i, d.Remaining)
	}

	d, err := store.Admit(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.WithinDuration(t, time.Now().Add(time.Second), d.ResetAt, time.Second)

	other, err := store.Admit(ctx, "203.0.113.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	require.Eventually(t, func() bool {
		d, err := store.Admit(ctx, "203.0.113.7")
		return err == nil && d.Allowed
	}, 5*time.Second, 200*time.Millisecond)
}

func TestRedisStoreSharedBetweenInstances(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	a := NewRedisStore(rc.Client, 3, time.Minute)
	b := NewRedisStore(rc.Client, 3, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := a.Admit(ctx, "shared")
		require.NoError(t, err)
	}
	d, err := b.Admit(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
