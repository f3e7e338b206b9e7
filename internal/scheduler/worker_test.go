package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireDue(ctx context.Context) (int, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 1, c.err
}

func runWorker(t *testing.T, w *Worker, stop func()) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(finished)
	}()

	stop()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_SweepsOnStartAndEveryTick(t *testing.T) {
	exp := &countingExpirer{}
	w := NewWorker(exp, 5*time.Millisecond, zap.NewNop())

	runWorker(t, w, func() {
		assert.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, time.Millisecond)
		w.Stop()
	})

	// Stop is safe to call twice
	w.Stop()
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	exp := &countingExpirer{}
	w := NewWorker(exp, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	finished := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(finished)
	}()

	assert.Eventually(t, func() bool { return exp.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_KeepsRunningAfterFailedSweep(t *testing.T) {
	exp := &countingExpirer{err: errors.New("database unavailable")}
	w := NewWorker(exp, 5*time.Millisecond, zap.NewNop())

	runWorker(t, w, func() {
		assert.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, time.Millisecond)
		w.Stop()
	})
}

func TestNewWorker_DefaultInterval(t *testing.T) {
	w := NewWorker(&countingExpirer{}, 0, zap.NewNop())
	assert.Equal(t, defaultSweepInterval, w.interval)
}
