package session

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn"
)

// bucket is one leaky bucket: level grows with rate*elapsed time, capped
// at 0.3*rate, and a send of n bytes is allowed iff level >= n.
type bucket struct {
	level float64
	rate  float64
	last  time.Time
}

// newBucket starts a fresh bucket at its burst cap (0.3*rate) so a
// newly connected session can send an initial burst before throttling
// kicks in, rather than starting empty and blocking immediately.
func newBucket(rate float64) bucket {
	return bucket{level: 0.3 * rate, rate: rate, last: time.Now()}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.level += b.rate * elapsed
	if ceiling := 0.3 * b.rate; b.level > ceiling {
		b.level = ceiling
	}
	b.last = now
}

// Throttles is the seven-bucket leaky-bucket set governing outbound
// traffic, one per apc.ThrottleClass.
type Throttles struct {
	buckets [apc.NumThrottles]bucket
}

func NewThrottles() Throttles {
	var t Throttles
	for i := range t.buckets {
		t.buckets[i] = newBucket(apc.InitialThrottleRate)
	}
	return t
}

// Allow refills bucket k to the current time, then reports whether it
// has at least n bytes available, consuming them on success.
func (t *Throttles) Allow(k apc.ThrottleClass, n int) bool {
	b := &t.buckets[k]
	b.refill(time.Now())
	if b.level < float64(n) {
		return false
	}
	b.level -= float64(n)
	return true
}

// throttleResetSize is the wire size of the client-supplied reset block:
// seven little-endian float32 rates.
const throttleResetSize = 4 * int(apc.NumThrottles)

// ResetFromBlock parses a 28-byte little-endian float block and resets
// every bucket's rate (and restarts its refill clock) to the client-
// supplied value.
func (t *Throttles) ResetFromBlock(blob []byte) error {
	if len(blob) != throttleResetSize {
		return cmn.NewValidation("throttle reset block must be exactly 28 bytes")
	}
	now := time.Now()
	for i := 0; i < int(apc.NumThrottles); i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		rate := float64(math.Float32frombits(bits))
		t.buckets[i] = newBucket(rate)
		t.buckets[i].last = now
	}
	return nil
}
