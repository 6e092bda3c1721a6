package blockstm

import (
	"reflect"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// valuesEqual compares two values read from MVDS/storage for validation
// purposes. Transaction outputs are arbitrary user types, so plain
// reflect.DeepEqual is the only comparison that works for every Output
// implementation without requiring one more interface method from callers.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// worker pulls tasks from sched until it reports Done, executing or
// validating whichever transaction it is handed. Every worker in the pool
// runs this same loop (§5 "Workers: ... identical routine").
type worker struct {
	id         int
	txns       []Transaction
	execTask   ExecutorTask
	executor   Executor
	base       StateView
	mv         *MVStore
	sched      *Scheduler
	table      *TxnTable
	profile    bool
	blockStart time.Time
}

func newWorker(id int, txns []Transaction, execTask ExecutorTask, base StateView, mv *MVStore, sched *Scheduler, table *TxnTable, profile bool, blockStart time.Time) *worker {
	return &worker{
		id:         id,
		txns:       txns,
		execTask:   execTask,
		executor:   execTask.Init(nil),
		base:       base,
		mv:         mv,
		sched:      sched,
		table:      table,
		profile:    profile,
		blockStart: blockStart,
	}
}

func (w *worker) run() {
	for {
		task := w.sched.NextTask()

		switch task.Kind {
		case TaskDone:
			return
		case TaskNone:
			runtime.Gosched()
		case TaskExecution:
			w.execute(task.Version.TxnIndex, task.Version.Incarnation)
			task.Guard.Release()
		case TaskValidation:
			w.validate(task.Version.TxnIndex, task.Version.Incarnation)
			task.Guard.Release()
		}
	}
}

// execute runs one incarnation of txns[idx] and applies its writes/deltas
// to MVDS, per §4.4 steps 1-5.
func (w *worker) execute(idx TxnIndex, incarnation int) {
	var statStart uint64
	if w.profile {
		statStart = uint64(time.Since(w.blockStart))
	}

	view := newSpeculativeView(idx, w.base, w.mv, w.sched)

	status := w.executor.ExecuteTransaction(view, w.txns[idx], idx, false)

	if status.Kind == StatusAbort {
		if w.sched.Done() {
			// The block has already halted (for instance a read returned
			// ErrHalted), so this abort cannot change the committed result.
			return
		}

		log.Error("blockstm: fatal transaction error", "index", idx, "err", status.Err)
		w.sched.Fail(&UserError{TxnIndex: idx, Err: status.Err})

		return
	}

	out := status.Output

	prevKeys := w.table.ModifiedKeys(idx)
	prevSet := newModifiedKeySet(prevKeys)

	oldKeySet := make(map[Key]struct{}, len(prevKeys))
	for _, k := range prevKeys {
		oldKeySet[k] = struct{}{}
	}

	writes := out.GetWrites()
	deltas := out.GetDeltas()

	writtenKeys := make([]Key, 0, len(writes))
	deltaKeys := make([]Key, 0, len(deltas))
	wroteOutsidePrevSet := false

	for _, wr := range writes {
		w.mv.Write(wr.Key, Version{TxnIndex: idx, Incarnation: incarnation}, wr.Value)
		prevSet.remove(wr.Key)
		writtenKeys = append(writtenKeys, wr.Key)

		if _, ok := oldKeySet[wr.Key]; !ok {
			wroteOutsidePrevSet = true
		}
	}

	for _, d := range deltas {
		w.mv.AddDelta(d.Key, idx, d.Delta)
		prevSet.remove(d.Key)
		deltaKeys = append(deltaKeys, d.Key)

		if _, ok := oldKeySet[d.Key]; !ok {
			wroteOutsidePrevSet = true
		}
	}

	for _, k := range prevSet.remaining() {
		w.mv.Delete(k, idx)
	}

	if status.Kind == StatusSkipRest {
		w.sched.MarkSkipRest(idx)
	}

	var stat ExecutionStat
	if w.profile {
		stat = ExecutionStat{Start: statStart, End: uint64(time.Since(w.blockStart))}
	}

	w.table.Record(idx, incarnation, view.takeReads(), writtenKeys, deltaKeys, out, stat)
	w.sched.FinishExecution(idx, incarnation, wroteOutsidePrevSet)
}

// validate re-reads idx's recorded read set against MVDS and aborts idx if
// any entry no longer matches, per §4.4 step 3.
func (w *worker) validate(idx TxnIndex, incarnation int) {
	if validateReadSet(idx, w.table.ReadSet(idx), w.mv) {
		return
	}

	if !w.sched.TryAbort(idx, incarnation) {
		return
	}

	metricAborts.Inc(1)

	for _, k := range w.table.ModifiedKeys(idx) {
		w.mv.MarkEstimate(k, idx)
	}

	w.sched.FinishAbort(idx, incarnation)
}

// validateReadSet reports whether every ReadDescriptor idx recorded would
// still be produced by a fresh MVDS read, without blocking on a dependency:
// a dependency found during validation always counts as a mismatch, since
// validation must never park a thread (§4.4 step 3, §9).
func validateReadSet(idx TxnIndex, reads []ReadDescriptor, mv *MVStore) bool {
	for _, rd := range reads {
		res := mv.Read(rd.Path, idx)

		if res.Status() == MVReadResultDependency {
			return false
		}

		switch rd.Kind {
		case ReadKindVersion:
			if res.Status() != MVReadResultDone || !res.HasVersion() {
				return false
			}

			if res.DepIdx() != rd.V.TxnIndex || res.Incarnation() != rd.V.Incarnation {
				return false
			}

		case ReadKindResolved:
			if res.Status() != MVReadResultDone || res.HasVersion() {
				return false
			}

			if !valuesEqual(res.Value(), rd.Value) {
				return false
			}

		case ReadKindUnresolved:
			if res.Status() != MVReadResultUnresolved {
				return false
			}

			if !res.Delta().Equal(rd.Delta) {
				return false
			}

		case ReadKindStorage:
			if res.Status() != MVReadResultNone {
				return false
			}

		case ReadKindDeltaFailure:
			if res.Status() != MVReadResultDeltaFailure {
				return false
			}
		}
	}

	return true
}
