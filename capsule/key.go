package capsule

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Alias tables for the fields that can carry a capsule's identity. These are
// the single declared lookup point for identity fields; nothing else in the
// module inspects capsules for ids.
var (
	idFieldAliases        = []string{"id", "capsuleId", "memoryId", "contentId"}
	pulseFieldAliases     = []string{"pulse", "kaiPulse"}
	signatureFieldAliases = []string{"kaiSignature", "signature", "sig"}
)

var hex64Regex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ContentKey derives the stable short identity for a capsule. The same
// logical capsule yields the same key across every transport form (payload
// ref, path token, registry row), regardless of object-key insertion order.
//
// Priority: an explicit 64-hex id field (lowercased) wins; then a positive
// finite pulse; then a signature-like field; finally a fingerprint of the
// canonical JSON.
func ContentKey(capsule map[string]any) string {
	for _, alias := range idFieldAliases {
		if s, ok := capsule[alias].(string); ok && hex64Regex.MatchString(s) {
			return strings.ToLower(s)
		}
	}
	for _, alias := range pulseFieldAliases {
		if p, ok := numericField(capsule[alias]); ok && p > 0 {
			return "p:" + strconv.FormatInt(p, 10)
		}
	}
	for _, alias := range signatureFieldAliases {
		if s, ok := capsule[alias].(string); ok && s != "" {
			return "s:" + Fingerprint(s)
		}
	}
	canon, err := Canonicalize(capsule)
	if err != nil {
		// canonicalization of a decoded capsule cannot fail; an undecodable
		// value still needs some deterministic key
		return "f:" + Fingerprint("unkeyed")
	}
	return "f:" + Fingerprint(canon)
}

// PulseOf reads the capsule's pulse field through the same alias table used
// for keying. Returns false when no positive finite pulse is present.
func PulseOf(capsule map[string]any) (int64, bool) {
	for _, alias := range pulseFieldAliases {
		if p, ok := numericField(capsule[alias]); ok && p > 0 {
			return p, true
		}
	}
	return 0, false
}

// numericField reads a positive integer out of the shapes JSON decoding can
// produce for a number.
func numericField(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		if n != n || n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
