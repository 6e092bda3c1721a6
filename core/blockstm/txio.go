package blockstm

import "sync"

// txnRecord is one transaction's last completed incarnation's bookkeeping:
// the read set it observed, the keys it wrote or applied a delta to, and
// the output it produced. TxnTable is the last-input-output table of §4.2.
type txnRecord struct {
	incarnation int
	reads       []ReadDescriptor
	writtenKeys []Key
	deltaKeys   []Key
	output      Output
	moduleRace  bool
	stat        ExecutionStat
}

// TxnTable holds, per transaction index, the bookkeeping left behind by its
// most recently finished incarnation: read set, modified-key set, and
// produced output. Workers replace a slot wholesale each time an
// incarnation finishes; nothing here is read concurrently with the write
// that replaces it because the scheduler only ever hands the slot's
// execution task to one worker at a time.
type TxnTable struct {
	mu      sync.RWMutex
	records []txnRecord
}

// NewTxnTable builds an empty table sized for numTxns transactions.
func NewTxnTable(numTxns int) *TxnTable {
	return &TxnTable{records: make([]txnRecord, numTxns)}
}

// Record stores the outcome of one finished incarnation at idx.
func (t *TxnTable) Record(idx TxnIndex, incarnation int, reads []ReadDescriptor, writtenKeys, deltaKeys []Key, out Output, stat ExecutionStat) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records[idx] = txnRecord{
		incarnation: incarnation,
		reads:       reads,
		writtenKeys: writtenKeys,
		deltaKeys:   deltaKeys,
		output:      out,
		moduleRace:  out != nil && out.ModulePathReadWrite(),
		stat:        stat,
	}
}

// ReadSet returns idx's most recently recorded read set.
func (t *TxnTable) ReadSet(idx TxnIndex) []ReadDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records[idx].reads
}

// ModifiedKeys returns the union of idx's most recently recorded write and
// delta keys, deduplicated.
func (t *TxnTable) ModifiedKeys(idx TxnIndex) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[Key]struct{}, len(t.records[idx].writtenKeys)+len(t.records[idx].deltaKeys))

	var out []Key

	for _, k := range t.records[idx].writtenKeys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	for _, k := range t.records[idx].deltaKeys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	return out
}

// WrittenKeys returns idx's most recently recorded write keys only.
func (t *TxnTable) WrittenKeys(idx TxnIndex) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records[idx].writtenKeys
}

// DeltaKeys returns idx's most recently recorded delta keys only.
func (t *TxnTable) DeltaKeys(idx TxnIndex) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records[idx].deltaKeys
}

// Output returns idx's most recently recorded output, or nil if idx has
// never finished an incarnation.
func (t *TxnTable) Output(idx TxnIndex) Output {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records[idx].output
}

// ModulePublishingMayRace reports whether idx's last recorded output flagged
// a module-path publish/load conflict (§4.4 step 6).
func (t *TxnTable) ModulePublishingMayRace(idx TxnIndex) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records[idx].moduleRace
}

// Stats returns the last recorded execution window for every index in
// [0, n), keyed by index. Only meaningful when Config.Profile was set; the
// zero ExecutionStat is indistinguishable from "not profiled" otherwise.
func (t *TxnTable) Stats(n int) map[int]ExecutionStat {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[int]ExecutionStat, n)
	for i := 0; i < n; i++ {
		stats[i] = t.records[i].stat
	}

	return stats
}

// TakeOutput returns the output recorded for every index in [0, n), in
// order. Called once after the block halts; every index in range must have
// a recorded output or the caller has a bug.
func (t *TxnTable) TakeOutput(n int) []Output {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Output, n)
	for i := 0; i < n; i++ {
		out[i] = t.records[i].output
	}

	return out
}
