package wire

import (
	"fmt"

	"github.com/phigrid/memorystream/capsule"
)

// WitnessDepth returns the witness-chain depth a URL carries: the number of
// `add` entries for a fragment-form URL, zero for anything else.
func WitnessDepth(raw string) int {
	f, err := ParseFragmentURL(raw)
	if err != nil {
		return 0
	}
	return f.Depth()
}

// ContentKeyForURL derives the content key of the capsule a URL carries,
// trying the fragment form first and the path form second. This is how two
// different transport encodings of the same capsule are recognized as one.
func ContentKeyForURL(raw string) (string, error) {
	if f, err := ParseFragmentURL(raw); err == nil {
		obj, err := capsule.DecodeCapsule(f.Root)
		if err != nil {
			return "", fmt.Errorf("undecodable root capsule: %w", err)
		}
		return capsule.ContentKey(obj), nil
	}
	tok, err := DecodePathToken(raw)
	if err != nil {
		return "", fmt.Errorf("%w: neither fragment nor path form", ErrNotStreamURL)
	}
	return capsule.ContentKey(tok.Capsule()), nil
}
