package blockstm

import (
	"fmt"
	"strings"
	"time"

	"github.com/heimdalr/dag"

	"github.com/ethereum/go-ethereum/log"
)

// DAG wraps a dependency graph built from a finished block's recorded read
// sets and modified-key sets, for post-hoc diagnostics: how much of the
// block's apparent parallelism was real, and which chain of transactions
// bounded the wall-clock time.
type DAG struct {
	*dag.DAG
}

// ExecutionStat is one transaction's wall-clock execution window, in
// nanoseconds since the block run started, as recorded by the worker pool
// when profiling is enabled.
type ExecutionStat struct {
	Start uint64
	End   uint64
}

// hasReadDep reports whether any key txFrom wrote or applied a delta to is
// among the keys txTo read.
func hasReadDep(txFrom []Key, txTo []ReadDescriptor) bool {
	reads := make(map[Key]struct{}, len(txTo))

	for _, rd := range txTo {
		reads[rd.Path] = struct{}{}
	}

	for _, k := range txFrom {
		if _, ok := reads[k]; ok {
			return true
		}
	}

	return false
}

// BuildDAG constructs the dependency graph over the final incarnation of
// every committed transaction recorded in table: an edge j -> i exists
// when i's read set overlaps j's modified-key set for some j < i.
func BuildDAG(table *TxnTable, numTxns int) DAG {
	d := DAG{dag.NewDAG()}
	ids := make(map[int]string, numTxns)

	vertex := func(i int) string {
		if id, ok := ids[i]; ok {
			return id
		}

		id, _ := d.AddVertex(i)
		ids[i] = id

		return id
	}

	for i := numTxns - 1; i > 0; i-- {
		txTo := table.ReadSet(i)
		toID := vertex(i)

		for j := i - 1; j >= 0; j-- {
			txFrom := table.ModifiedKeys(j)

			if hasReadDep(txFrom, txTo) {
				fromID := vertex(j)

				if err := d.AddEdge(fromID, toID); err != nil {
					log.Warn("blockstm: failed to add dependency edge", "from", j, "to", i, "err", err)
				}
			}
		}
	}

	return d
}

// GetDep returns, for each transaction index, the indices of the
// transactions it directly reads a value written (or delta'd) by.
func GetDep(table *TxnTable, numTxns int) map[int][]int {
	dependencies := map[int][]int{}

	for i := numTxns - 1; i > 0; i-- {
		txTo := table.ReadSet(i)

		for j := i - 1; j >= 0; j-- {
			txFrom := table.ModifiedKeys(j)

			if hasReadDep(txFrom, txTo) {
				dependencies[i] = append(dependencies[i], j)
			}
		}
	}

	return dependencies
}

// LongestPath finds the longest execution path through the DAG by
// critical-path weight, using stats for each vertex's wall-clock window.
func (d DAG) LongestPath(stats map[int]ExecutionStat) ([]int, uint64) {
	prev := make(map[int]int, len(d.GetVertices()))

	for i := 0; i < len(d.GetVertices()); i++ {
		prev[i] = -1
	}

	pathWeights := make(map[int]uint64, len(d.GetVertices()))

	maxPath := 0
	maxPathWeight := uint64(0)

	idxToID := make(map[int]string, len(d.GetVertices()))

	for k, i := range d.GetVertices() {
		idxToID[i.(int)] = k
	}

	for i := 0; i < len(idxToID); i++ {
		parents, _ := d.GetParents(idxToID[i])

		if len(parents) > 0 {
			for _, p := range parents {
				weight := pathWeights[p.(int)] + stats[i].End - stats[i].Start
				if weight > pathWeights[i] {
					pathWeights[i] = weight
					prev[i] = p.(int)
				}
			}
		} else {
			pathWeights[i] = stats[i].End - stats[i].Start
		}

		if pathWeights[i] > maxPathWeight {
			maxPath = i
			maxPathWeight = pathWeights[i]
		}
	}

	path := make([]int, 0)
	for i := maxPath; i != -1; i = prev[i] {
		path = append(path, i)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, maxPathWeight
}

// Report writes a human-readable summary of the critical path to out.
func (d DAG) Report(stats map[int]ExecutionStat, out func(string)) {
	longestPath, weight := d.LongestPath(stats)

	serialWeight := uint64(0)

	for i := 0; i < len(d.GetVertices()); i++ {
		serialWeight += stats[i].End - stats[i].Start
	}

	makeStrs := func(ints []int) (ret []string) {
		for _, v := range ints {
			ret = append(ret, fmt.Sprint(v))
		}

		return
	}

	out("Longest execution path:")
	out(fmt.Sprintf("(%v) %v", len(longestPath), strings.Join(makeStrs(longestPath), "->")))

	pct := 0.0
	if serialWeight > 0 {
		pct = float64(weight) * 100.0 / float64(serialWeight)
	}

	out(fmt.Sprintf("Longest path ideal execution time: %v of %v (serial total), %v%%", time.Duration(weight),
		time.Duration(serialWeight), fmt.Sprintf("%.1f", pct)))
}
