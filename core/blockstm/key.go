package blockstm

import (
	"encoding/hex"
	"strconv"
)

// Key identifies one unit of state. It is opaque to the executor: callers
// build it from whatever identifies a storage location in their domain
// (an account path, a table row, a queue slot). Key is a plain string so it
// gets equality, hashing, and ordering for free from the language, matching
// the MVDS requirement that keys "support equality and hashing/ordering".
type Key string

// NewKey joins one or more opaque byte segments into a single Key. Segments
// are hex-encoded and separated by ':' so that distinct segmentations never
// collide (e.g. NewKey([]byte{0x0a}, []byte{0xbc}) != NewKey([]byte{0x0a, 0xbc})).
func NewKey(segments ...[]byte) Key {
	if len(segments) == 1 {
		return Key(hex.EncodeToString(segments[0]))
	}

	buf := make([]byte, 0, len(segments)*17)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hex.EncodeToString(s)...)
	}

	return Key(buf)
}

// NewSubpathKey builds a Key for the i-th logical subpath of an entity
// identified by id, e.g. a distinct counter or field owned by an account.
func NewSubpathKey(id []byte, subpath int) Key {
	return Key(hex.EncodeToString(id) + "/" + strconv.Itoa(subpath))
}
