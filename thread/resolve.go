package thread

import (
	"context"
	"fmt"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/wire"
)

// FetchFunc resolves a reference the core cannot open locally, typically by
// fetching a remote payload. The core never performs I/O itself; callers
// supply this hook and cancel it through the context. A nil FetchFunc means
// remote references simply terminate the walk.
type FetchFunc func(ctx context.Context, ref string) (map[string]any, error)

// ResolveThreadRoot finds the reference of the thread's root capsule for a
// URL. An explicit witness chain wins: its oldest entry is the root.
// Otherwise the walk follows previous pointers iteratively from the viewed
// capsule, stopping on a missing pointer, a repeated content key, or the
// step bound, and returns the last reference it could resolve.
//
// knownPayload, when non-nil, is the already-decoded viewed capsule and
// saves re-decoding the URL. fetch may be nil.
func ResolveThreadRoot(ctx context.Context, rawURL string, knownPayload map[string]any, fetch FetchFunc) (capsule.PayloadRef, error) {
	if chain := ExtractAddChain(rawURL); len(chain) > 0 {
		return chain[0], nil
	}

	viewedRef, viewed, err := decodeViewed(rawURL, knownPayload)
	if err != nil {
		return "", err
	}

	last := viewedRef
	cur := viewed
	seen := map[string]bool{capsule.ContentKey(cur): true}
	for step := 0; step < maxRootWalkSteps; step++ {
		ref, ok := ExtractPrevRef(cur)
		if !ok {
			break
		}
		obj, err := openRef(ctx, ref, fetch)
		if err != nil {
			// a well-formed ref we cannot open is still the furthest
			// resolvable ancestor
			last = ref
			break
		}
		key := capsule.ContentKey(obj)
		if seen[key] {
			break
		}
		seen[key] = true
		last = ref
		cur = obj
	}
	return last, nil
}

// openRef decodes a reference locally, deferring to the caller's fetch hook
// when the payload is not embedded.
func openRef(ctx context.Context, ref capsule.PayloadRef, fetch FetchFunc) (map[string]any, error) {
	obj, err := capsule.DecodeCapsule(ref)
	if err == nil {
		return obj, nil
	}
	if fetch == nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fetch(ctx, string(ref))
}

// decodeViewed resolves the viewed capsule and its payload ref from a URL in
// either transport form.
func decodeViewed(rawURL string, known map[string]any) (capsule.PayloadRef, map[string]any, error) {
	if f, err := wire.ParseFragmentURL(rawURL); err == nil {
		if known != nil {
			return f.Root, known, nil
		}
		obj, err := capsule.DecodeCapsule(f.Root)
		if err != nil {
			return "", nil, fmt.Errorf("viewed capsule undecodable: %w", err)
		}
		return f.Root, obj, nil
	}
	if tok, err := wire.DecodePathToken(rawURL); err == nil {
		obj := known
		if obj == nil {
			obj = tok.Capsule()
		}
		ref, err := capsule.EncodePayloadRef(obj)
		if err != nil {
			return "", nil, err
		}
		return ref, obj, nil
	}
	return "", nil, fmt.Errorf("%w: %s", wire.ErrNotStreamURL, rawURL)
}
