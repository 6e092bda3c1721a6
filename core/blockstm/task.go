package blockstm

// Transaction is the unit of work the block is made of. It is opaque to
// the core: an ExecutorTask knows how to turn one into writes and deltas.
type Transaction = any

// StateView is the read-only snapshot execution falls back to when MVDS
// has no entry below a reader's index.
type StateView interface {
	Get(key Key) (any, bool)
}

// View is what a transaction's execution sees: a speculative read surface
// layered over MVDS and the base StateView. It is supplied fresh for every
// execute() call (§5 "Worker-local: ... the speculative view").
type View interface {
	Get(key Key) (any, error)
}

// WriteOp is a single (key, value) write an executor produced.
type WriteOp struct {
	Key   Key
	Value any
}

// DeltaOp is a single (key, commutative op) delta an executor produced.
type DeltaOp struct {
	Key   Key
	Delta Delta
}

// Output is what one transaction's execution produced.
type Output interface {
	GetWrites() []WriteOp
	GetDeltas() []DeltaOp
	GasUsed() uint64
	// ModulePathReadWrite reports whether this output observed a cross-txn
	// publish/load conflict on a module path (§4.4 step 6).
	ModulePathReadWrite() bool
}

// StatusKind discriminates the outcome of one execution attempt.
type StatusKind int

const (
	StatusSuccess StatusKind = iota
	StatusSkipRest
	StatusAbort
)

// ExecutionStatus is the result ExecutorTask.ExecuteTransaction returns:
// Success(out), SkipRest(out), or Abort(err).
type ExecutionStatus struct {
	Kind   StatusKind
	Output Output
	Err    error
}

func Success(out Output) ExecutionStatus  { return ExecutionStatus{Kind: StatusSuccess, Output: out} }
func SkipRest(out Output) ExecutionStatus { return ExecutionStatus{Kind: StatusSkipRest, Output: out} }
func Abort(err error) ExecutionStatus     { return ExecutionStatus{Kind: StatusAbort, Err: err} }

// Executor runs one transaction at a time against a View. A fresh Executor
// is constructed per worker thread by ExecutorTask.Init, and reused across
// every transaction and re-execution that thread handles.
type Executor interface {
	ExecuteTransaction(view View, txn Transaction, idx TxnIndex, materializeDeltas bool) ExecutionStatus
}

// ExecutorTask is the factory collaborator the core requires: it builds a
// worker-local Executor and supplies the filler Output used to pad a
// SkipRest-truncated tail (§6).
type ExecutorTask interface {
	Init(args any) Executor
	SkipOutput() Output
}
