package framework

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerStopsOnFailure(t *testing.T) {
	failure := errors.New("bus gone")
	r := NewRunner().Go(
		NamedRun("worker", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		NamedRun("reader", RunFunc(func(ctx context.Context) error {
			return failure
		})),
	)
	err := r.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err.(*AggregatedError).Errors[0], failure))
	assert.Contains(t, err.Error(), "reader")
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner().Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	assert.NoError(t, r.Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	assert.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	assert.Equal(t, "a", errs.Aggregate().Error())
	errs.Add(errors.New("b"))
	assert.Equal(t, "multiple errors:\n  a\n  b", errs.Error())
}

func TestLoopTrigger(t *testing.T) {
	var handled int32
	done := make(chan struct{}, 10)
	l := NewLoop(HandleEventFunc(func(ctx context.Context) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	assert.True(t, l.Trigger())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	assert.Equal(t, uint64(1), l.Events())

	l.SetEnabled(false)
	assert.False(t, l.Trigger())
	assert.Equal(t, uint64(1), l.Events())
	l.ResetEvents()
	assert.Zero(t, l.Events())
}

func TestLoopPolls(t *testing.T) {
	done := make(chan struct{}, 10)
	l := NewLoop(HandleEventFunc(func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("no poll event")
		}
	}
	cancel()
	assert.Equal(t, context.Canceled, <-errCh)
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	go cancel()
	err := RunWithContextCancel(ctx, func() { close(stop) }, func() error {
		<-stop
		return nil
	})
	assert.Equal(t, context.Canceled, err)
}
