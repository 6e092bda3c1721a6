package blockstm

import (
	"errors"
	"fmt"
)

// ErrModulePathReadWrite signals that the executor detected a read/write
// race on a module-publishing path while recording a transaction's outputs.
// It halts parallel execution immediately; the caller is expected to fall
// back to ExecuteSequential.
var ErrModulePathReadWrite = errors.New("blockstm: module path read/write race, fall back to sequential execution")

// ErrDeltaApplicationFailure is recorded in a read's descriptor when folding
// a delta chain (or applying it to a base value) fails. It is not fatal on
// its own: validation treats a repeated delta failure as valid so that a
// genuinely unrecoverable failure surfaces later, at materialization, where
// resolveDeltas panics instead.
var ErrDeltaApplicationFailure = errors.New("blockstm: delta application failed")

// ErrHalted is returned to a speculative read that was parked waiting on a
// dependency when the block halted before the dependency resolved.
var ErrHalted = errors.New("blockstm: block halted while read was pending")

// UserError wraps the error an ExecutorTask returned via ExecutionStatus's
// Abort variant. It is the only error that can escape ExecuteParallel /
// ExecuteSequential for reasons other than the module-path fallback or
// cancellation of ExecuteParallel's context.
type UserError struct {
	TxnIndex TxnIndex
	Err      error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("blockstm: transaction %d aborted: %v", e.TxnIndex, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// ModulePathRaceError reports which transaction the commit thread caught
// ModulePathReadWrite on. It wraps ErrModulePathReadWrite rather than
// UserError: this is an engine-detected fallback condition, not a
// transaction's own execution error.
type ModulePathRaceError struct {
	TxnIndex TxnIndex
}

func (e *ModulePathRaceError) Error() string {
	return fmt.Sprintf("blockstm: %v at transaction %d", ErrModulePathReadWrite, e.TxnIndex)
}

func (e *ModulePathRaceError) Unwrap() error { return ErrModulePathReadWrite }

// invariantViolation is raised (as a panic) when a bookkeeping structure
// that execution depends on is missing, e.g. a read-set that should have
// been recorded before validation runs. These indicate a bug in the
// scheduler/worker coupling, not a user or data error, so they are fatal.
type invariantViolation struct {
	msg string
}

func (e invariantViolation) Error() string { return "blockstm: invariant violation: " + e.msg }

func panicInvariant(format string, args ...any) {
	panic(invariantViolation{msg: fmt.Sprintf(format, args...)})
}
