package blockstm

import (
	"runtime"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	metricValidations  = metrics.NewRegisteredCounter("blockstm/validations", nil)
	metricCommitAborts = metrics.NewRegisteredCounter("blockstm/fallback", nil)
)

// runCommitThread drains committed transactions in strict order, re-
// validating each one read-only (no TryAbort: a commit-thread mismatch
// just means the re-execution that will fix it hasn't landed yet, so it
// spins rather than racing the worker pool) and stops at the first of:
// the block gas limit, a module-publishing race, or a SkipRest output.
// It returns the number of transactions actually committed, which may be
// less than numTxns (§4.5, §4.6).
func runCommitThread(numTxns int, gasLimit uint64, sched *Scheduler, mv *MVStore, table *TxnTable) int {
	idx := 0
	var gasUsed uint64

	for idx < numTxns {
		if sched.Done() {
			break
		}

		if !sched.ReadyForCommit(idx) {
			runtime.Gosched()
			continue
		}

		metricValidations.Inc(1)

		if !validateReadSet(idx, table.ReadSet(idx), mv) {
			// A worker will re-execute and re-validate this index; the
			// commit thread just waits for that incarnation to land.
			runtime.Gosched()
			continue
		}

		// Checked before folding idx in: bounds the commit gas overshoot
		// to at most one transaction's worth, matching §4.6.
		if gasLimit > 0 && gasUsed >= gasLimit {
			sched.MarkSkipRest(idx)
			break
		}

		if table.ModulePublishingMayRace(idx) {
			metricCommitAborts.Inc(1)
			sched.Fail(&ModulePathRaceError{TxnIndex: idx})

			break
		}

		out := table.Output(idx)
		gasUsed += out.GasUsed()
		idx++
	}

	if skip := sched.SkipRestIdx(); skip < idx {
		idx = skip
	}

	sched.SetCommitIdx(idx)

	return idx
}
