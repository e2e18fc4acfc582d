package thread

import (
	"context"
	"sort"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/chaingraph"
	"github.com/phigrid/memorystream/registry"
	"github.com/phigrid/memorystream/wire"
)

// Message is one deduplicated thread member: the best-scoring transport form
// found for a content key.
type Message struct {
	Key     string
	Ref     capsule.PayloadRef
	URL     string // empty when the capsule was only seen as a chain entry
	Capsule map[string]any
	Pulse   int64
	Reply   bool // displays as a reply (carries a previous pointer)
	Depth   int  // witness depth of the chosen URL
}

// Thread is the assembled view for one opened URL. Replies are ordered by
// descending pulse and never include the viewed item itself.
type Thread struct {
	Root    *Message
	Viewed  *Message
	Replies []*Message
}

// Resolver assembles threads and feeds what it learns back into the chain
// graph and registry. All collaborators are optional handles; a nil one is
// simply not consulted.
type Resolver struct {
	Graph    *chaingraph.Graph
	Registry *registry.Registry
	Fetch    FetchFunc
}

func NewResolver(g *chaingraph.Graph, r *registry.Registry) *Resolver {
	return &Resolver{Graph: g, Registry: r}
}

// candidate is one transport form of some capsule, prior to dedup.
type candidate struct {
	url   string
	ref   capsule.PayloadRef
	obj   map[string]any
	depth int
}

func (c *candidate) reply() bool {
	_, ok := ExtractPrevRef(c.obj)
	return ok
}

// tiebreakLen penalizes transport length; ref-only candidates weigh in with
// their ref length.
func (c *candidate) tiebreakLen() int {
	if c.url != "" {
		return len(c.url)
	}
	return len(c.ref)
}

// Open decodes a memory-stream URL, assembles its thread from the candidate
// pool (the URL itself, its witness chain, and every registry-known URL),
// and records the observed links in the graph and registry. The context
// only gates the caller-supplied fetch hook; everything else is synchronous
// local computation.
func (rv *Resolver) Open(ctx context.Context, rawURL string) (*Thread, error) {
	viewedRef, viewed, err := decodeViewed(rawURL, nil)
	if err != nil {
		return nil, err
	}
	viewedKey := capsule.ContentKey(viewed)
	chain := ExtractAddChain(rawURL)

	rootRef, err := ResolveThreadRoot(ctx, rawURL, viewed, rv.Fetch)
	if err != nil {
		return nil, err
	}
	rootKey := keyForRef(rootRef)

	byKey := map[string][]candidate{}
	insert := func(c candidate) {
		if c.obj == nil {
			obj, err := capsule.DecodeCapsule(c.ref)
			if err != nil {
				return
			}
			c.obj = obj
		}
		key := capsule.ContentKey(c.obj)
		byKey[key] = append(byKey[key], c)
	}

	insert(candidate{url: rawURL, ref: viewedRef, obj: viewed, depth: len(chain)})
	for _, ref := range chain {
		insert(candidate{ref: ref})
	}
	if rv.Registry != nil {
		for _, u := range rv.Registry.URLs() {
			if c, ok := candidateFromURL(u); ok {
				insert(c)
			}
		}
	}

	msgs := make(map[string]*Message, len(byKey))
	for key, cands := range byKey {
		best := pickBest(cands, key == rootKey)
		pulse, _ := capsule.PulseOf(best.obj)
		msgs[key] = &Message{
			Key:     key,
			Ref:     best.ref,
			URL:     best.url,
			Capsule: best.obj,
			Pulse:   pulse,
			Reply:   best.reply(),
			Depth:   best.depth,
		}
	}

	th := &Thread{
		Root:   msgs[rootKey],
		Viewed: msgs[viewedKey],
	}
	for key, m := range msgs {
		if key == rootKey || key == viewedKey {
			continue
		}
		th.Replies = append(th.Replies, m)
	}
	sort.Slice(th.Replies, func(i, j int) bool {
		if th.Replies[i].Pulse != th.Replies[j].Pulse {
			return th.Replies[i].Pulse > th.Replies[j].Pulse
		}
		return th.Replies[i].Key < th.Replies[j].Key
	})

	rv.record(rawURL, viewedKey, viewedRef, chain)
	return th, nil
}

// KnownAncestors rebuilds the witness chain for a content key from the chain
// graph, normalized and ready to feed a segment builder. Oldest-first.
func (rv *Resolver) KnownAncestors(key string) []capsule.PayloadRef {
	if rv.Graph == nil {
		return nil
	}
	var out []capsule.PayloadRef
	for _, raw := range rv.Graph.AncestorList(key, MaxChainDepth) {
		if ref, ok := NormalizeRef(raw); ok {
			out = append(out, ref)
		}
	}
	return out
}

// record feeds the observed chain into the graph (prev-links between
// consecutive entries, newest linking to the viewed capsule) and registers
// the opened URL.
func (rv *Resolver) record(rawURL, viewedKey string, viewedRef capsule.PayloadRef, chain []capsule.PayloadRef) {
	if rv.Graph != nil {
		prevKey := ""
		for _, ref := range chain {
			key := keyForRef(ref)
			rv.Graph.Upsert(key, chaingraph.Node{
				PrevKey:    prevKey,
				PayloadRef: string(ref),
			})
			prevKey = key
		}
		rv.Graph.Upsert(viewedKey, chaingraph.Node{
			PrevKey:     prevKey,
			PayloadRef:  string(viewedRef),
			FallbackRef: rawURL,
		})
	}
	if rv.Registry != nil {
		rv.Registry.Upsert(viewedKey, rawURL)
	}
}

// pickBest scores candidates for one key: matching the expected display role
// (root when the key is the thread root, reply otherwise) dominates, then
// witness depth, then shorter transport.
func pickBest(cands []candidate, expectRoot bool) candidate {
	best := cands[0]
	bestScore := scoreCandidate(&best, expectRoot)
	for _, c := range cands[1:] {
		if s := scoreCandidate(&c, expectRoot); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func scoreCandidate(c *candidate, expectRoot bool) int {
	score := 0
	wantReply := !expectRoot
	if c.reply() == wantReply {
		score += 1 << 30
	}
	score += c.depth << 20
	score -= c.tiebreakLen()
	return score
}

func candidateFromURL(raw string) (candidate, bool) {
	if f, err := wire.ParseFragmentURL(raw); err == nil {
		return candidate{url: raw, ref: f.Root, depth: len(f.Adds)}, true
	}
	if tok, err := wire.DecodePathToken(raw); err == nil {
		obj := tok.Capsule()
		ref, err := capsule.EncodePayloadRef(obj)
		if err != nil {
			return candidate{}, false
		}
		return candidate{url: raw, ref: ref, obj: obj}, true
	}
	return candidate{}, false
}

// keyForRef derives a content key for a reference, falling back to a
// fingerprint of the ref itself when the payload will not decode.
func keyForRef(ref capsule.PayloadRef) string {
	obj, err := capsule.DecodeCapsule(ref)
	if err != nil {
		return "f:" + capsule.Fingerprint(string(ref))
	}
	return capsule.ContentKey(obj)
}
