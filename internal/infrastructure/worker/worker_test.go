package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRetrier struct {
	mu    sync.Mutex
	calls int
	limit int
	err   error
}

func (f *fakeRetrier) RetryPush(ctx context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limit = limit
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func (f *fakeRetrier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPushRetryWorker_PollsUntilStopped(t *testing.T) {
	retrier := &fakeRetrier{}
	w := NewPushRetryWorker(PushRetryWorkerConfig{PollInterval: 5 * time.Millisecond, BatchSize: 7}, retrier, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start")

	assert.Eventually(t, func() bool { return retrier.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	calls := retrier.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, retrier.callCount(), "no polling after stop")
	assert.Equal(t, 7, retrier.limit)
	assert.Equal(t, 2*calls, w.PushedCount())
	assert.NoError(t, w.LastError())
}

func TestPushRetryWorker_RecordsFailures(t *testing.T) {
	retrier := &fakeRetrier{err: errors.New("database is locked")}
	w := NewPushRetryWorker(PushRetryWorkerConfig{PollInterval: 5 * time.Millisecond}, retrier, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.LastError() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Zero(t, w.PushedCount())
	assert.Equal(t, DefaultPushRetryWorkerConfig().BatchSize, retrier.limit)
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	retrier := &fakeRetrier{}
	m.Register(NewPushRetryWorker(PushRetryWorkerConfig{PollInterval: time.Hour}, retrier, zap.NewNop()))

	assert.Equal(t, 1, m.GetWorkerCount())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	require.NoError(t, m.StopAll())
}
