package blockstm

// speculativeView is the View a transaction executes against: every Get
// first consults MVDS, parks on the scheduler if it lands on an Estimate,
// resolves against the base StateView when nothing newer exists, and
// records what it saw so the result can later be validated (§4.1, §4.4
// step 1).
type speculativeView struct {
	txnIdx TxnIndex
	base   StateView
	mv     *MVStore
	sched  *Scheduler
	reads  []ReadDescriptor
}

func newSpeculativeView(txnIdx TxnIndex, base StateView, mv *MVStore, sched *Scheduler) *speculativeView {
	return &speculativeView{txnIdx: txnIdx, base: base, mv: mv, sched: sched}
}

// Get resolves key following §4.1: descend MVDS below txnIdx, block on a
// dependency and retry once it resolves, fold unresolved deltas against the
// base view, or fall through to storage.
func (v *speculativeView) Get(key Key) (any, error) {
	for {
		res := v.mv.Read(key, v.txnIdx)

		switch res.Status() {
		case MVReadResultDone:
			if res.HasVersion() {
				v.reads = append(v.reads, ReadDescriptor{
					Path: key,
					Kind: ReadKindVersion,
					V:    Version{TxnIndex: res.DepIdx(), Incarnation: res.Incarnation()},
				})
			} else {
				v.reads = append(v.reads, ReadDescriptor{Path: key, Kind: ReadKindResolved, Value: res.Value()})
			}

			return res.Value(), nil

		case MVReadResultDependency:
			wh := v.sched.WaitForDependency(v.txnIdx, res.DepIdx())
			if !wh.Wait() {
				return nil, ErrHalted
			}

			continue

		case MVReadResultUnresolved:
			base, _ := v.base.Get(key)

			resolved, err := res.Delta().Apply(base)
			if err != nil {
				v.reads = append(v.reads, ReadDescriptor{Path: key, Kind: ReadKindDeltaFailure})
				return nil, &UserError{TxnIndex: v.txnIdx, Err: ErrDeltaApplicationFailure}
			}

			v.reads = append(v.reads, ReadDescriptor{Path: key, Kind: ReadKindUnresolved, Delta: res.Delta()})

			return resolved, nil

		case MVReadResultDeltaFailure:
			v.reads = append(v.reads, ReadDescriptor{Path: key, Kind: ReadKindDeltaFailure})
			return nil, &UserError{TxnIndex: v.txnIdx, Err: ErrDeltaApplicationFailure}

		default: // MVReadResultNone
			val, _ := v.base.Get(key)
			v.reads = append(v.reads, ReadDescriptor{Path: key, Kind: ReadKindStorage, Value: val})

			return val, nil
		}
	}
}

// takeReads returns the read set accumulated so far and clears it, so the
// same view value can in principle be reused across a retry loop without
// double-recording reads from a previous attempt.
func (v *speculativeView) takeReads() []ReadDescriptor {
	reads := v.reads
	v.reads = nil

	return reads
}
