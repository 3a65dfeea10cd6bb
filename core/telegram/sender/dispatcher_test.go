package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJobsOnce(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})
	var ok, failed atomic.Int32
	for i := 0; i < 4; i++ {
		require.NoError(t, d.Enqueue(t.Context(), "answerCallbackQuery", "", func(context.Context) error {
			ok.Add(1)
			return nil
		}))
	}
	require.NoError(t, d.Enqueue(t.Context(), "getChat", "", func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}))
	d.Close()

	assert.EqualValues(t, 4, ok.Load())
	assert.EqualValues(t, 1, failed.Load())
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherDetachesCancellation(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	ctx, cancel := context.WithCancel(t.Context())
	seen := make(chan error, 1)
	require.NoError(t, d.Enqueue(ctx, "answerCallbackQuery", "", func(jobCtx context.Context) error {
		seen <- jobCtx.Err()
		return nil
	}))
	cancel()
	d.Close()
	assert.NoError(t, <-seen)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(t.Context(), "a", "", func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(t.Context(), "b", "", func(context.Context) error { return nil }))
	err := d.Enqueue(t.Context(), "c", "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(block)
	d.Close()
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(t.Context(), "a", "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, NewDispatcher(Options{}).Enqueue(t.Context(), "a", "", nil))
}

func TestDispatcherBoundsJobDuration(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxDuration: 20 * time.Millisecond})
	done := make(chan error, 1)
	require.NoError(t, d.Enqueue(t.Context(), "slow", "", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}))
	d.Close()
	assert.ErrorIs(t, <-done, context.DeadlineExceeded)
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	require.NoError(t, d.Enqueue(t.Context(), "p", "", func(context.Context) error { panic("x") }))
	d.Close()
	assert.EqualValues(t, 1, d.ErrorCount())
}
