package blockstm

// resolveDeltas materializes every key touched by a delta in the committed
// prefix [0, committed) into a concrete value, reading each key as of
// position committed so the result folds exactly the deltas a committed
// transaction could have observed.
//
// A key whose chain cannot be folded (overflow/underflow past what
// IntDelta.Apply can represent) panics rather than returning an error: by
// the time resolveDeltas runs, a committed transaction already read that
// key successfully past validation, so a fold failure here means the
// chain changed out from under a value every consumer now depends on -
// not a speculative-execution artifact to recover from.
func resolveDeltas(keys []Key, mv *MVStore, base StateView, committed TxnIndex) map[Key]any {
	out := make(map[Key]any, len(keys))

	for _, key := range keys {
		res := mv.Read(key, committed)

		switch res.Status() {
		case MVReadResultDone:
			out[key] = res.Value()

		case MVReadResultUnresolved:
			baseVal, _ := base.Get(key)

			resolved, err := res.Delta().Apply(baseVal)
			if err != nil {
				panicInvariant("unresolvable delta chain for key %s at commit index %d: %v", key, committed, err)
			}

			out[key] = resolved

		case MVReadResultDeltaFailure:
			panicInvariant("unresolvable delta chain for key %s at commit index %d", key, committed)

		case MVReadResultNone:
			// Nothing wrote or delta'd this key within the committed
			// prefix; storage value stands unchanged, nothing to emit.
		}
	}

	return out
}

// deltaTouchedKeys collects the deduplicated set of keys any committed
// transaction recorded a delta for.
func deltaTouchedKeys(table *TxnTable, committed TxnIndex) []Key {
	seen := make(map[Key]struct{})

	var keys []Key

	for idx := 0; idx < committed; idx++ {
		for _, k := range table.DeltaKeys(idx) {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}

	return keys
}
