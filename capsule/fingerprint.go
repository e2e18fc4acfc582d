package capsule

import (
	"fmt"
	"unicode/utf16"
)

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// Fingerprint computes a 64-bit FNV-1a hash of the string, returned as 16
// lower-hex digits. The hash runs over UTF-16 code units rather than bytes so
// it agrees with fingerprints computed by non-Go peers that index strings by
// code unit.
func Fingerprint(s string) string {
	h := fnvOffset64
	for _, u := range utf16.Encode([]rune(s)) {
		h ^= uint64(u)
		h *= fnvPrime64
	}
	return fmt.Sprintf("%016x", h)
}
