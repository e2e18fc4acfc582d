package thread

import (
	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/wire"
)

const (
	// MaxChainDepth truncates extracted witness chains, keeping the most
	// recent entries.
	MaxChainDepth = 24

	// maxWrapperDepth bounds how deep NormalizePrev looks inside nested
	// wrapper objects for a previous pointer.
	maxWrapperDepth = 2

	// maxRootWalkSteps bounds the previous-pointer walk in
	// [ResolveThreadRoot].
	maxRootWalkSteps = 32
)

// prevFieldAliases is the one declared alias table for "previous" pointers.
// Checked in order; the first hit wins.
var prevFieldAliases = []string{
	"previous",
	"prev",
	"parent",
	"parentUrl",
	"inReplyTo",
	"replyTo",
	"originUrl",
	"origin",
}

// wrapperFieldAliases are the envelope fields a capsule may nest its real
// payload under.
var wrapperFieldAliases = []string{"payload", "data", "message", "content"}

// NormalizeRef canonicalizes any of the three accepted reference forms to a
// payload reference: a content-embedded "j:" token, a stream URL (whose root
// capsule becomes the ref), or a bare base64url token.
func NormalizeRef(raw string) (capsule.PayloadRef, bool) {
	if raw == "" {
		return "", false
	}
	if ref, err := capsule.ParsePayloadRef(raw); err == nil {
		return ref, true
	}
	if f, err := wire.ParseFragmentURL(raw); err == nil {
		return f.Root, true
	}
	if tok, err := wire.DecodePathToken(raw); err == nil {
		if ref, err := capsule.EncodePayloadRef(tok.Capsule()); err == nil {
			return ref, true
		}
	}
	if ref, err := capsule.ParsePayloadRef(capsule.PayloadRefPrefix + raw); err == nil {
		return ref, true
	}
	return "", false
}

// ExtractAddChain reads the witness chain from a URL: repeated `add` entries
// from the fragment (preferred) or query, each normalized via [NormalizeRef],
// truncated to [MaxChainDepth] keeping the most recent. Ordered oldest to
// newest.
func ExtractAddChain(rawURL string) []capsule.PayloadRef {
	values, err := wire.StreamValues(rawURL)
	if err != nil {
		return nil
	}
	var chain []capsule.PayloadRef
	for _, raw := range values["add"] {
		if ref, ok := NormalizeRef(raw); ok {
			chain = append(chain, ref)
		}
	}
	if len(chain) > MaxChainDepth {
		chain = chain[len(chain)-MaxChainDepth:]
	}
	return chain
}

// ExtractPrevRef finds a capsule's "previous" pointer: the alias table is
// checked at the capsule root and inside up to two nested wrapper levels;
// the first hit is normalized and returned.
func ExtractPrevRef(obj map[string]any) (capsule.PayloadRef, bool) {
	return extractPrev(obj, 0)
}

func extractPrev(obj map[string]any, depth int) (capsule.PayloadRef, bool) {
	for _, alias := range prevFieldAliases {
		raw, ok := prevCandidate(obj[alias])
		if !ok {
			continue
		}
		if ref, ok := NormalizeRef(raw); ok {
			return ref, true
		}
	}
	if depth >= maxWrapperDepth {
		return "", false
	}
	for _, alias := range wrapperFieldAliases {
		if inner, ok := obj[alias].(map[string]any); ok {
			if ref, ok := extractPrev(inner, depth+1); ok {
				return ref, true
			}
		}
	}
	return "", false
}

// prevCandidate reads the raw pointer out of a field value. Accepts a plain
// string or the 2-element [label, ref] array convention, where the second
// element carries the reference.
func prevCandidate(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case []any:
		if len(val) != 2 {
			return "", false
		}
		if s, ok := val[1].(string); ok && s != "" {
			return s, true
		}
		if s, ok := val[0].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
