package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	calls int32
	err   error
	block chan struct{} // if set, Run blocks until closed
}

func (m *mockRunner) Run(ctx context.Context) error {
	atomic.AddInt32(&m.calls, 1)
	if m.block != nil {
		<-m.block
	}
	return m.err
}

func (m *mockRunner) callCount() int32 {
	return atomic.LoadInt32(&m.calls)
}

func TestTick_FiresRunner(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, "0 0 * * *")

	s.tick(context.Background())

	assert.Equal(t, int32(1), runner.callCount())
}

func TestTick_RunnerError_DoesNotPanic(t *testing.T) {
	runner := &mockRunner{err: assert.AnError}
	s := New(runner, "0 0 * * *")

	require.NotPanics(t, func() {
		s.tick(context.Background())
	})
	assert.Equal(t, int32(1), runner.callCount())
}

func TestTick_OverlappingTick_Skipped(t *testing.T) {
	block := make(chan struct{})
	runner := &mockRunner{block: block}
	s := New(runner, "0 0 * * *")

	go s.tick(context.Background())

	require.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, time.Millisecond)

	// A second tick while the first is in flight must be skipped.
	s.tick(context.Background())
	assert.Equal(t, int32(1), runner.callCount(), "overlapping tick should be skipped")

	close(block)
}

func TestTick_SequentialTicks_BothRun(t *testing.T) {
	runner := &mockRunner{}
	s := New(runner, "0 0 * * *")

	s.tick(context.Background())
	s.tick(context.Background())

	assert.Equal(t, int32(2), runner.callCount())
}

func TestStart_InvalidCron_ReturnsError(t *testing.T) {
	s := New(&mockRunner{}, "not a valid cron")
	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestStart_ValidCron_StartsAndStopsCleanly(t *testing.T) {
	s := New(&mockRunner{}, "* * * * *")

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStop_BeforeStart_NoPanic(t *testing.T) {
	s := New(&mockRunner{}, "0 0 * * *")
	require.NotPanics(t, s.Stop)
}
