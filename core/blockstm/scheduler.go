package blockstm

import "sync"

// txnStatusKind is the per-txn state machine from spec §4.3.
type txnStatusKind int

const (
	statusReadyToExecute txnStatusKind = iota
	statusExecuting
	statusExecuted
	statusAborting
)

// depWaiter is a single parked reader's wait handle: a lock+condvar pair
// holding a Resolved/Unresolved flag, per the design note in §9.
type depWaiter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	resolved bool
}

func newDepWaiter() *depWaiter {
	w := &depWaiter{}
	w.cond = sync.NewCond(&w.mu)

	return w
}

// Wait blocks until the dependency resolves or the block halts. It
// returns false once the block has halted, so the caller can return
// ErrHalted instead of retrying forever.
func (w *depWaiter) Wait(halted *bool, haltMu *sync.Mutex) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		haltMu.Lock()
		h := *halted
		haltMu.Unlock()

		if h {
			return false
		}

		if w.resolved {
			return true
		}

		w.cond.Wait()
	}
}

func (w *depWaiter) resolve() {
	w.mu.Lock()
	w.resolved = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

type txnState struct {
	status      txnStatusKind
	incarnation int
	waiters     []*depWaiter
}

// TaskGuard is a scope-bound handle on one scheduler-issued task. A worker
// must call Release when it has finished acting on the task so the
// scheduler can tell when no task is outstanding anywhere in the pool.
type TaskGuard struct {
	s *Scheduler
}

// Release marks the guarded task as finished.
func (g TaskGuard) Release() {
	g.s.taskDone()
}

// TaskKind discriminates what next_task handed back.
type TaskKind int

const (
	TaskNone TaskKind = iota
	TaskExecution
	TaskValidation
	TaskDone
)

// Task is what Scheduler.NextTask returns.
type Task struct {
	Kind    TaskKind
	Version Version
	Guard   TaskGuard
}

// Scheduler dispatches execution and validation tasks to workers, tracks
// the execution/validation frontiers, coordinates abort/re-execution, and
// parks readers blocked on a dependency. It is the sole owner of the
// shared mutable state described in spec §4.3.
type Scheduler struct {
	mu sync.Mutex

	numTxns       int
	executionIdx  int
	validationIdx int
	decreaseCnt   int
	commitIdx     int
	gasLimit      uint64
	done          bool
	outstanding   int

	txns []txnState

	doneCond *sync.Cond

	skipRestIdx int
	fatalErr    error
}

// NewScheduler builds a scheduler for a block of numTxns transactions.
// commitIdx starts at numTxns (the upper bound the commit thread drains
// toward) and is replaced by the commit thread's final committed count
// once it stops.
func NewScheduler(numTxns int, gasLimit uint64) *Scheduler {
	s := &Scheduler{
		numTxns:     numTxns,
		commitIdx:   numTxns,
		gasLimit:    gasLimit,
		txns:        make([]txnState, numTxns),
		skipRestIdx: numTxns,
	}
	s.doneCond = sync.NewCond(&s.mu)

	return s
}

func (s *Scheduler) taskDone() {
	s.mu.Lock()
	s.outstanding--
	s.mu.Unlock()
}

// NextTask returns, in priority order, a validation task, an execution
// task, or NoTask; Done is returned once halt() has been called and every
// task handed out has been released through its TaskGuard.
func (s *Scheduler) NextTask() Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		if s.outstanding == 0 {
			return Task{Kind: TaskDone}
		}

		return Task{Kind: TaskNone}
	}

	if s.validationIdx < s.executionIdx && s.validationIdx < s.numTxns {
		idx := s.validationIdx
		if s.txns[idx].status != statusExecuted {
			// Execution for this slot hasn't completed yet; validation
			// can't get ahead of it. Fall through to offering execution
			// work instead of spinning the caller on NoTask for nothing.
		} else {
			s.validationIdx++
			s.outstanding++

			return Task{Kind: TaskValidation, Version: Version{TxnIndex: idx, Incarnation: s.txns[idx].incarnation}, Guard: TaskGuard{s}}
		}
	}

	for s.executionIdx < s.numTxns {
		idx := s.executionIdx
		s.executionIdx++

		if s.txns[idx].status != statusReadyToExecute {
			// An abort pulled the frontier back below this slot, which is
			// still executing or already executed; only slots an abort made
			// ready again are handed out.
			continue
		}

		s.txns[idx].status = statusExecuting
		s.outstanding++

		return Task{Kind: TaskExecution, Version: Version{TxnIndex: idx, Incarnation: s.txns[idx].incarnation}, Guard: TaskGuard{s}}
	}

	return Task{Kind: TaskNone}
}

// FinishExecution transitions idx to Executed. If the incarnation wrote
// outside the keys its previous incarnation touched, every higher-indexed
// validation becomes suspect and the validation frontier is pulled back to
// idx; otherwise idx alone needs (re-)validation, which the contiguous
// validation scan in NextTask will pick up once it reaches idx.
func (s *Scheduler) FinishExecution(idx TxnIndex, incarnation int, wroteOutsidePrevSet bool) {
	s.mu.Lock()

	st := &s.txns[idx]
	if st.status != statusExecuting || st.incarnation != incarnation {
		panicInvariant("FinishExecution(%d, %d): status %d, incarnation %d", idx, incarnation, st.status, st.incarnation)
	}

	st.status = statusExecuted

	if wroteOutsidePrevSet && idx < s.validationIdx {
		s.validationIdx = idx
	}

	waiters := st.waiters
	st.waiters = nil

	s.mu.Unlock()

	for _, w := range waiters {
		w.resolve()
	}
}

// TryAbort succeeds only if idx's current incarnation matches the caller's
// and its status is Executed. Losers (stale incarnation, or a concurrent
// abort already in flight) get false and take no action.
func (s *Scheduler) TryAbort(idx TxnIndex, incarnation int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.txns[idx]
	if st.status != statusExecuted || st.incarnation != incarnation {
		return false
	}

	st.status = statusAborting

	return true
}

// FinishAbort bumps idx's incarnation and makes it ReadyToExecute again,
// pulling both frontiers back to idx: a new incarnation must be executed
// and everything from idx onward must be re-validated against it.
func (s *Scheduler) FinishAbort(idx TxnIndex, incarnation int) {
	s.mu.Lock()

	st := &s.txns[idx]
	if st.status != statusAborting || st.incarnation != incarnation {
		panicInvariant("FinishAbort(%d, %d): status %d, incarnation %d", idx, incarnation, st.status, st.incarnation)
	}

	st.status = statusReadyToExecute
	st.incarnation = incarnation + 1
	s.decreaseCnt++

	if idx < s.executionIdx {
		s.executionIdx = idx
	}

	if idx < s.validationIdx {
		s.validationIdx = idx
	}

	s.mu.Unlock()
}

// WaitHandle is returned by WaitForDependency.
type WaitHandle struct {
	resolved bool
	waiter   *depWaiter
	s        *Scheduler
}

// Wait blocks until the dependency resolves or the block halts, returning
// false on halt.
func (h WaitHandle) Wait() bool {
	if h.resolved {
		return true
	}

	if h.waiter == nil {
		return false // the block had already halted
	}

	return h.waiter.Wait(&h.s.done, &h.s.mu)
}

// WaitForDependency parks waiterIdx on depIdx's waiter list if depIdx has
// not yet finished this round of execution; if it already has, the wait
// resolves immediately, and if the block has already halted, Wait reports
// false immediately.
func (s *Scheduler) WaitForDependency(waiterIdx, depIdx TxnIndex) WaitHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return WaitHandle{}
	}

	if s.txns[depIdx].status == statusExecuted {
		return WaitHandle{resolved: true}
	}

	w := newDepWaiter()
	s.txns[depIdx].waiters = append(s.txns[depIdx].waiters, w)

	return WaitHandle{waiter: w, s: s}
}

// ReadyForCommit reports whether idx is Executed and the validation
// frontier has already passed it, i.e. some validation wave reached idx
// without aborting it. The commit thread still re-validates idx itself
// before counting it (§4.5); this is only a readiness gate.
func (s *Scheduler) ReadyForCommit(idx TxnIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.txns[idx].status == statusExecuted && s.validationIdx > idx
}

// CommitIdx returns the commit thread's upper bound (numTxns) until the
// commit thread records its final committed count.
func (s *Scheduler) CommitIdx() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitIdx
}

// SetCommitIdx records the commit thread's final committed count.
func (s *Scheduler) SetCommitIdx(idx int) {
	s.mu.Lock()
	s.commitIdx = idx
	s.mu.Unlock()
}

// PerBlockGasLimit returns the configured gas cap for the commit thread.
func (s *Scheduler) PerBlockGasLimit() uint64 { return s.gasLimit }

// Halt sets the sticky done flag and wakes every parked dependency waiter
// and anyone blocked in WaitHandle.Wait, so they can discover Done.
func (s *Scheduler) Halt() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}

	s.done = true

	var waiters []*depWaiter
	for i := range s.txns {
		waiters = append(waiters, s.txns[i].waiters...)
		s.txns[i].waiters = nil
	}

	s.mu.Unlock()
	s.doneCond.Broadcast()

	for _, w := range waiters {
		w.resolve()
	}
}

// Done reports whether the block has halted.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// MarkSkipRest records that idx's output told the caller to discard every
// later transaction's effect, lowering the skip frontier if idx is the
// earliest transaction to say so.
func (s *Scheduler) MarkSkipRest(idx TxnIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx+1 < s.skipRestIdx {
		s.skipRestIdx = idx + 1
	}
}

// SkipRestIdx returns the first index whose output must be discarded in
// favor of ExecutorTask.SkipOutput, or numTxns if no transaction requested
// a skip.
func (s *Scheduler) SkipRestIdx() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.skipRestIdx
}

// Fail records the first fatal execution error and halts the block. Later
// calls after the first are no-ops: the first error wins.
func (s *Scheduler) Fail(err error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.mu.Unlock()

	s.Halt()
}

// Err returns the fatal error recorded by Fail, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fatalErr
}
