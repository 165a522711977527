package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Every("count", 50*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvery_FailingJobKeepsRunning(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Every("failing", 50*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("disk full")
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvery_Validation(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Every("zero", 0, noop))

	require.NoError(t, s.Every("clean", time.Hour, noop))
	assert.Error(t, s.Every("clean", time.Hour, noop), "tags are unique")
	assert.Equal(t, []string{"clean"}, s.Tags())

	require.NoError(t, s.Remove("clean"))
	assert.Empty(t, s.Tags())
}

func TestStop_CancelsJobContext(t *testing.T) {
	s := New()
	started := make(chan struct{})
	done := make(chan error, 1)
	require.NoError(t, s.Every("long", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return nil
	}))
	s.Start()
	<-started
	go s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not cancelled")
	}
}
