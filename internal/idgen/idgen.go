// Package idgen produces short, prefixed identifiers for orders,
// positions, triggers and events.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"

	"github.com/jxskiss/base62"
)

var fallback uint64

// New returns an id like "ord-4fQzX1Ab2C". The prefix keeps log lines and
// event payloads self-describing.
func New(prefix string) string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand should never fail; fall back to a process counter.
		binary.BigEndian.PutUint64(buf[:], atomic.AddUint64(&fallback, 1))
	}
	return prefix + "-" + base62.EncodeToString(buf[:])
}
