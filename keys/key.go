// Package keys defines the validator public-key type used as the primary
// handle into the attached-validator registry and slashing-protection store.
package keys

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// ValidatorKey is a 48-byte compressed BLS12-381 public key.
type ValidatorKey [48]byte

// Bytes returns the raw key bytes.
func (k ValidatorKey) Bytes() []byte { return k[:] }

// String renders the key as a 0x-prefixed hex string for logging.
func (k ValidatorKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// ShortString renders a truncated form suitable for log fields, mirroring
// bytesutil.Trunc's convention in the teacher repo (first and last bytes).
func (k ValidatorKey) ShortString() string {
	s := hex.EncodeToString(k[:])
	if len(s) <= 12 {
		return "0x" + s
	}
	return "0x" + s[:6] + "..." + s[len(s)-6:]
}

// Less reports whether k sorts before other, by raw byte comparison. Total
// ordering by bytes, per spec.md's data model.
func (k ValidatorKey) Less(other ValidatorKey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

// FromBytes copies b into a ValidatorKey. b must be exactly 48 bytes.
func FromBytes(b []byte) (ValidatorKey, bool) {
	var k ValidatorKey
	if len(b) != len(k) {
		return k, false
	}
	copy(k[:], b)
	return k, true
}

// Sort sorts keys in place using their total byte ordering.
func Sort(keys []ValidatorKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
