// Command blockstm-bench runs a synthetic block of counter transactions
// through the parallel executor and reports the committed count and
// throughput, as a smoke test and a microbenchmark harness for the engine in
// core/blockstm. The sequential executor is not run.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/blockstm-labs/parallel-exec/core/blockstm"
)

func main() {
	app := &cli.App{
		Name:  "blockstm-bench",
		Usage: "drive the parallel block executor over a synthetic workload",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "txns", Value: 2000, Usage: "number of transactions in the synthetic block"},
			&cli.IntFlag{Name: "keys", Value: 50, Usage: "number of distinct counter keys contended over"},
			&cli.IntFlag{Name: "procs", Value: 0, Usage: "worker pool size (0 = GOMAXPROCS)"},
			&cli.Uint64Flag{Name: "gas-limit", Value: 0, Usage: "block gas limit (0 = unlimited)"},
			&cli.BoolFlag{Name: "report", Value: false, Usage: "print the dependency DAG's critical-path report"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	numTxns := c.Int("txns")
	numKeys := c.Int("keys")

	txns, base := syntheticBlock(numTxns, numKeys)

	cfg := blockstm.Config{NumProcs: c.Int("procs"), GasLimit: c.Uint64("gas-limit"), Profile: c.Bool("report")}

	start := time.Now()

	result, err := blockstm.ExecuteParallel(context.Background(), txns, counterTask{}, base, cfg)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	fmt.Printf("committed %d/%d transactions in %s (%.0f txn/s)\n",
		result.Committed, numTxns, elapsed, float64(result.Committed)/elapsed.Seconds())

	if result.DAG != nil {
		result.DAG.Report(result.Stats, func(line string) { fmt.Println(line) })
	}

	return nil
}

// syntheticBlock builds numTxns counter-increment transactions spread
// across numKeys keys, giving a workload with a tunable amount of
// cross-transaction contention (fewer keys, more contention).
func syntheticBlock(numTxns, numKeys int) ([]blockstm.Transaction, blockstm.StateView) {
	base := make(fixedStateView, numKeys)

	for i := 0; i < numKeys; i++ {
		base[blockstm.Key(fmt.Sprintf("counter-%d", i))] = int64(0)
	}

	rng := rand.New(rand.NewSource(1))
	txns := make([]blockstm.Transaction, numTxns)

	for i := range txns {
		key := blockstm.Key(fmt.Sprintf("counter-%d", rng.Intn(numKeys)))
		txns[i] = counterTxn{key: key, amount: 1}
	}

	return txns, base
}

type fixedStateView map[blockstm.Key]any

func (v fixedStateView) Get(key blockstm.Key) (any, bool) {
	val, ok := v[key]
	return val, ok
}

type counterTxn struct {
	key    blockstm.Key
	amount int64
}

type counterOutput struct {
	writes []blockstm.WriteOp
}

func (o *counterOutput) GetWrites() []blockstm.WriteOp { return o.writes }
func (o *counterOutput) GetDeltas() []blockstm.DeltaOp { return nil }
func (o *counterOutput) GasUsed() uint64               { return 1 }
func (o *counterOutput) ModulePathReadWrite() bool     { return false }

type counterExecutor struct{}

func (counterExecutor) ExecuteTransaction(view blockstm.View, txn blockstm.Transaction, idx blockstm.TxnIndex, materializeDeltas bool) blockstm.ExecutionStatus {
	ct := txn.(counterTxn)

	cur, err := view.Get(ct.key)
	if err != nil {
		return blockstm.Abort(err)
	}

	curVal, _ := cur.(int64)

	return blockstm.Success(&counterOutput{writes: []blockstm.WriteOp{{Key: ct.key, Value: curVal + ct.amount}}})
}

type counterTask struct{}

func (counterTask) Init(args any) blockstm.Executor { return counterExecutor{} }
func (counterTask) SkipOutput() blockstm.Output      { return &counterOutput{} }
