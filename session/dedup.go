package session

import (
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// circuitDedupCapacity bounds the approximate-membership filter; a
// session only ever needs to dedup a handful of retransmitted
// UseCircuitCode packets during connection setup; this is the filter's
// entry capacity, not a wire limit.
const circuitDedupCapacity = 64

// CircuitDedup gives a session idempotent handling of a duplicate
// UseCircuitCode packet: the same circuit/sequence pair arriving twice
// (UDP retransmission) must not re-run connection setup a second time.
type CircuitDedup struct {
	filter *cuckoo.Filter
}

func NewCircuitDedup() *CircuitDedup {
	return &CircuitDedup{filter: cuckoo.NewFilter(circuitDedupCapacity)}
}

// SeenBefore inserts the (circuitCode, sequence) key and reports whether
// it was already present; false positives are possible (cuckoo filter),
// which only ever causes an extra packet to be harmlessly dropped, never
// a legitimate one processed twice.
func (d *CircuitDedup) SeenBefore(circuitCode uint32, sequence uint32) bool {
	key := dedupKey(circuitCode, sequence)
	return !d.filter.InsertUnique(key)
}

func dedupKey(circuitCode, sequence uint32) []byte {
	return []byte{
		byte(circuitCode >> 24), byte(circuitCode >> 16), byte(circuitCode >> 8), byte(circuitCode),
		byte(sequence >> 24), byte(sequence >> 16), byte(sequence >> 8), byte(sequence),
	}
}
