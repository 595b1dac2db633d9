package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/application/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error
	stopErr  error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (f *fakeWorker) Start(ctx context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeWorker) Stop() error {
	f.stopped.Add(1)
	return f.stopErr
}

func (f *fakeWorker) Name() string { return f.name }

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &fakeWorker{name: "ok"}
	broken := &fakeWorker{name: "broken", startErr: errors.New("no database")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()), "second start")
	assert.EqualValues(t, 1, ok.started.Load())
	assert.EqualValues(t, 1, broken.started.Load())

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.EqualValues(t, 1, ok.stopped.Load())
	assert.NoError(t, m.StopAll(), "stopping twice is a no-op")
}

func TestManager_StopReportsFailures(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "stuck", stopErr: errors.New("timeout")})

	require.NoError(t, m.StartAll(context.Background()))
	assert.ErrorContains(t, m.StopAll(), "failed to stop 1 workers")
}

type fakeReconciler struct {
	calls  atomic.Int32
	err    error
	result *service.ReconcileResult
}

func (f *fakeReconciler) ReconcileStatuses(ctx context.Context, dryRun bool) (*service.ReconcileResult, error) {
	f.calls.Add(1)
	if dryRun {
		return nil, errors.New("worker must not dry run")
	}
	return f.result, f.err
}

func TestReconcileWorker_RunsPeriodically(t *testing.T) {
	rec := &fakeReconciler{result: &service.ReconcileResult{
		Discussions: 2,
		Updates:     []workflow.StatusChange{{DiscussionID: "d", TaskID: 1}},
	}}
	w := NewReconcileWorker(ReconcileWorkerConfig{Interval: 10 * time.Millisecond}, rec, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Runs, 2)
	assert.Equal(t, stats.Runs, stats.Updates)
	assert.Zero(t, stats.Failures)

	calls := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.calls.Load(), "no passes after Stop")
}

func TestReconcileWorker_RecordsFailures(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("database is locked")}
	w := NewReconcileWorker(ReconcileWorkerConfig{Interval: 5 * time.Millisecond}, rec, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.Stats().Failures >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
	assert.EqualError(t, w.Stats().LastError, "database is locked")
}

func TestReconcileWorker_ZeroIntervalDisables(t *testing.T) {
	rec := &fakeReconciler{}
	w := NewReconcileWorker(ReconcileWorkerConfig{}, rec, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Stop())
	assert.Zero(t, rec.calls.Load())
}
