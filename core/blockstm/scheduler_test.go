package blockstm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerExecutionOrder(t *testing.T) {
	s := NewScheduler(3, 0)

	for i := 0; i < 3; i++ {
		task := s.NextTask()
		require.Equal(t, TaskExecution, task.Kind)
		require.Equal(t, i, task.Version.TxnIndex)
		require.Equal(t, 0, task.Version.Incarnation)
		task.Guard.Release()
	}

	task := s.NextTask()
	require.Equal(t, TaskNone, task.Kind)
}

func TestSchedulerValidationFollowsExecution(t *testing.T) {
	s := NewScheduler(2, 0)

	t0 := s.NextTask()
	require.Equal(t, TaskExecution, t0.Kind)
	t0.Guard.Release()

	// Nothing to validate yet: txn 0 hasn't finished executing.
	next := s.NextTask()
	require.Equal(t, TaskExecution, next.Kind)
	require.Equal(t, 1, next.Version.TxnIndex)
	next.Guard.Release()

	s.FinishExecution(0, 0, false)
	s.FinishExecution(1, 0, false)

	v0 := s.NextTask()
	require.Equal(t, TaskValidation, v0.Kind)
	require.Equal(t, 0, v0.Version.TxnIndex)
	v0.Guard.Release()

	v1 := s.NextTask()
	require.Equal(t, TaskValidation, v1.Kind)
	require.Equal(t, 1, v1.Version.TxnIndex)
	v1.Guard.Release()
}

func TestSchedulerAbortReExecutesAtNextIncarnation(t *testing.T) {
	s := NewScheduler(1, 0)

	task := s.NextTask()
	task.Guard.Release()
	s.FinishExecution(0, 0, false)

	require.True(t, s.TryAbort(0, 0))
	require.False(t, s.TryAbort(0, 0)) // second caller loses the race

	s.FinishAbort(0, 0)

	retry := s.NextTask()
	require.Equal(t, TaskExecution, retry.Kind)
	require.Equal(t, 0, retry.Version.TxnIndex)
	require.Equal(t, 1, retry.Version.Incarnation)
}

func TestSchedulerWaitForDependencyResolvedImmediately(t *testing.T) {
	s := NewScheduler(2, 0)

	task := s.NextTask()
	task.Guard.Release()
	s.FinishExecution(0, 0, false)

	wh := s.WaitForDependency(1, 0)
	require.True(t, wh.Wait())
}

func TestSchedulerHaltWakesWaiters(t *testing.T) {
	s := NewScheduler(2, 0)

	wh := s.WaitForDependency(1, 0)

	done := make(chan bool, 1)
	go func() { done <- wh.Wait() }()

	s.Halt()

	require.False(t, <-done)
	require.True(t, s.Done())
}

func TestSchedulerReadyForCommit(t *testing.T) {
	s := NewScheduler(2, 0)

	t0 := s.NextTask()
	t0.Guard.Release()
	t1 := s.NextTask()
	t1.Guard.Release()

	s.FinishExecution(0, 0, false)
	require.False(t, s.ReadyForCommit(0))

	v0 := s.NextTask() // advances validationIdx past 0
	v0.Guard.Release()
	require.True(t, s.ReadyForCommit(0))
}

func TestSchedulerSkipRestIdx(t *testing.T) {
	s := NewScheduler(5, 0)
	require.Equal(t, 5, s.SkipRestIdx())

	s.MarkSkipRest(2)
	require.Equal(t, 3, s.SkipRestIdx())

	s.MarkSkipRest(3) // later mark should not raise the frontier back up
	require.Equal(t, 3, s.SkipRestIdx())
}
