package blockstm

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/ethereum/go-ethereum/log"
)

// Config tunes one call to ExecuteParallel. NumProcs <= 0 means "use
// runtime.GOMAXPROCS(0) workers", and GasLimit == 0 means "no block gas
// limit" (the commit thread never stops early for gas).
type Config struct {
	NumProcs int
	GasLimit uint64

	// Profile records each transaction's wall-clock execution window and
	// builds the dependency DAG over the committed prefix, attached to the
	// returned Result as Stats/DAG. Off by default: BuildDAG and the timing
	// capture it requires aren't free, and most callers only want the
	// committed count.
	Profile bool
}

func (c Config) numProcs() int {
	if c.NumProcs > 0 {
		return c.NumProcs
	}

	return runtime.GOMAXPROCS(0)
}

// ExecuteParallel runs txns against base using speculative multi-version
// concurrency control, producing a Result equivalent to running every
// transaction strictly in order against base (§1, §4). The returned error
// is non-nil only for a fatal transaction error (ExecutionStatus Abort), a
// module-path race (ModulePathRaceError), or ctx cancellation; a block that legitimately stops short via a gas limit
// or a SkipRest output is reported through Result.Committed, not an error.
func ExecuteParallel(ctx context.Context, txns []Transaction, execTask ExecutorTask, base StateView, cfg Config) (Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	log.Debug("blockstm: starting parallel execution", "run", runID, "txns", len(txns), "procs", cfg.numProcs())

	result, err := runParallel(ctx, txns, execTask, base, cfg.numProcs(), cfg.GasLimit, cfg.Profile)
	if err != nil {
		log.Error("blockstm: parallel execution failed", "run", runID, "err", err)
		return result, err
	}

	log.Info("blockstm: block exec summary", "run", runID, "txns", len(txns), "committed", result.Committed, "elapsed", time.Since(start))

	return result, nil
}

// ExecuteSequential runs txns strictly in order with incarnation 0 only,
// no validation, and no abort/retry. It is the definition of correctness
// ExecuteParallel must match, and the fallback path when a caller wants a
// single-threaded run without touching the scheduler (§1, §9).
func ExecuteSequential(txns []Transaction, execTask ExecutorTask, base StateView) (Result, error) {
	numTxns := len(txns)
	outputs := make([]Output, numTxns)

	mv := NewMVStore()
	sched := NewScheduler(numTxns, 0)
	executor := execTask.Init(nil)

	for idx := 0; idx < numTxns; idx++ {
		view := newSpeculativeView(idx, base, mv, sched)

		status := executor.ExecuteTransaction(view, txns[idx], idx, true)
		if status.Kind == StatusAbort {
			return Result{}, &UserError{TxnIndex: idx, Err: status.Err}
		}

		out := status.Output

		for _, w := range out.GetWrites() {
			mv.Write(w.Key, Version{TxnIndex: idx, Incarnation: 0}, w.Value)
		}

		for _, d := range out.GetDeltas() {
			mv.AddDelta(d.Key, idx, d.Delta)
		}

		outputs[idx] = out

		if status.Kind == StatusSkipRest {
			for j := idx + 1; j < numTxns; j++ {
				outputs[j] = execTask.SkipOutput()
			}

			return Result{Outputs: outputs, Committed: idx + 1}, nil
		}
	}

	return Result{Outputs: outputs, Committed: numTxns}, nil
}
