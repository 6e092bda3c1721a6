package blockstm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/errgroup"
)

var metricBlockDuration = metrics.NewRegisteredTimer("blockstm/block/duration", nil)

// Result is what one block's parallel (or sequential) execution produces:
// one Output per transaction, in original block order, and how many of
// those transactions the commit thread actually validated and counted
// before stopping (< len(Outputs) only when a gas limit or a SkipRest
// output cut the block short; a module-path race is returned as an error).
type Result struct {
	Outputs   []Output
	Committed int

	// MaterializedDeltas holds, for every key any committed transaction
	// applied a delta to, the single concrete value that chain of deltas
	// folds to as of the end of the committed prefix.
	MaterializedDeltas map[Key]any

	// DAG and Stats are populated only when Config.Profile is set: the
	// dependency graph over the committed prefix and each transaction's
	// wall-clock execution window, for DAG.Report diagnostics.
	DAG   *DAG
	Stats map[int]ExecutionStat
}

// runParallel is the engine behind ExecuteParallel: it wires an MVStore,
// Scheduler, and TxnTable together, fans numProcs workers and one commit
// thread out over an errgroup, and assembles the final Result once the
// commit thread has drained as far as it can (§5).
func runParallel(ctx context.Context, txns []Transaction, execTask ExecutorTask, base StateView, numProcs int, gasLimit uint64, profile bool) (Result, error) {
	start := time.Now()
	defer metricBlockDuration.UpdateSince(start)

	numTxns := len(txns)
	if numTxns == 0 {
		return Result{}, nil
	}

	mv := NewMVStore()
	sched := NewScheduler(numTxns, gasLimit)
	table := NewTxnTable(numTxns)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < numProcs; i++ {
		w := newWorker(i, txns, execTask, base, mv, sched, table, profile, start)

		g.Go(func() error {
			done := make(chan struct{})

			go func() {
				w.run()
				close(done)
			}()

			select {
			case <-done:
				return nil
			case <-gctx.Done():
				sched.Halt()
				<-done

				return gctx.Err()
			}
		})
	}

	var committed int

	g.Go(func() error {
		committed = runCommitThread(numTxns, gasLimit, sched, mv, table)
		sched.Halt()

		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if err := sched.Err(); err != nil {
		return Result{}, err
	}

	skip := sched.SkipRestIdx()
	if skip < committed {
		committed = skip
	}

	outputs := table.TakeOutput(numTxns)

	for i := committed; i < numTxns; i++ {
		outputs[i] = execTask.SkipOutput()
	}

	var materialized map[Key]any
	if committed > 0 {
		keys := deltaTouchedKeys(table, committed)
		materialized = resolveDeltas(keys, mv, base, committed)
	}

	result := Result{Outputs: outputs, Committed: committed, MaterializedDeltas: materialized}

	if profile && committed > 0 {
		d := BuildDAG(table, committed)
		result.DAG = &d
		result.Stats = table.Stats(committed)
	}

	return result, nil
}
