package blockstm

import mapset "github.com/deckarep/golang-set/v2"

// modifiedKeySet tracks the keys one incarnation of a transaction has
// written a cell for, so a re-execution can tell which of the previous
// incarnation's keys it no longer touches and must delete (§4.4 execute
// step 5). Backed by the teacher's set type rather than a bare
// map[Key]struct{}.
type modifiedKeySet struct {
	set mapset.Set[Key]
}

func newModifiedKeySet(keys []Key) modifiedKeySet {
	return modifiedKeySet{set: mapset.NewThreadUnsafeSet(keys...)}
}

func (s modifiedKeySet) remove(k Key) bool {
	if !s.set.Contains(k) {
		return false
	}

	s.set.Remove(k)

	return true
}

func (s modifiedKeySet) remaining() []Key {
	return s.set.ToSlice()
}
