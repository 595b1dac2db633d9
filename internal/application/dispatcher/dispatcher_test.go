package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/discussion-review/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvent() *event.Event {
	return event.NewEvent(event.TypeTaskStatusChanged, "octo_widgets_1", 1, nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.SubscribeNamed(event.TypeTaskStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeTaskStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeConsensusSaved, func(ctx context.Context, evt *event.Event) error {
		t.Error("handler for another type must not run")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newEvent()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	called := false
	d.SubscribeNamed(event.TypeTaskStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	d.SubscribeNamed(event.TypeTaskStatusChanged, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, called)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeTaskStatusChanged, func(ctx context.Context, evt *event.Event) error {
		panic("handler bug")
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestDispatchAsync_SurvivesCallerCancellation(t *testing.T) {
	d := NewDispatcher()
	var seen atomic.Int32
	d.Subscribe(event.TypeTaskStatusChanged, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() == nil {
			seen.Add(1)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, newEvent())
	cancel()

	require.NoError(t, d.Close())
	assert.Equal(t, int32(1), seen.Load())
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeAll("metrics", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	for _, typ := range event.AllTypes() {
		assert.Equal(t, 1, d.HandlerCount(typ))
		require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(typ, "", 0, nil)))
	}
	assert.Equal(t, int32(len(event.AllTypes())), count.Load())
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.Error(t, d.Dispatch(context.Background(), newEvent()))

	d.DispatchAsync(context.Background(), newEvent())
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeTaskStatusChanged, func(ctx context.Context, evt *event.Event) error { return nil })
		}()
		go func() {
			defer wg.Done()
			d.DispatchAsync(context.Background(), newEvent())
		}()
	}
	wg.Wait()

	require.NoError(t, d.Close())
	assert.Equal(t, 20, d.HandlerCount(event.TypeTaskStatusChanged))
}
