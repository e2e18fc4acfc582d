package segment

import (
	"github.com/oklog/ulid/v2"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/wire"
)

// maxArchiveDepth bounds archive recursion. Reaching it forces a root-only
// fallback segment instead of recursing further or exceeding the cap.
const maxArchiveDepth = 64

// Meta is the segment metadata object, carried in the URL's `seg` key as its
// own payload reference.
type Meta struct {
	Version    int    `json:"version"`
	ID         string `json:"id"`
	MerkleRoot string `json:"merkleRoot"`
	LeafCount  int    `json:"leafCount"`
	AddCount   int    `json:"addCount"`
	ShortRoot  string `json:"shortRoot"`
}

// BuiltSegment is one packed, in-budget URL.
type BuiltSegment struct {
	URL        string
	RootRef    capsule.PayloadRef
	Adds       []capsule.PayloadRef // oldest to newest
	MerkleRoot string
	LeafCount  int
	AddCount   int
}

// Pack is the result of segmenting a full ancestor chain: the primary
// segment plus any archive segments, archives ordered oldest-first.
type Pack struct {
	Primary  BuiltSegment
	Archives []BuiltSegment
}

// FlattenAdds reconstructs the original ancestor sequence from a pack:
// archive chains oldest-first, then the primary's adds.
func (p *Pack) FlattenAdds() []capsule.PayloadRef {
	var out []capsule.PayloadRef
	for _, arch := range p.Archives {
		out = append(out, arch.Adds...)
	}
	return append(out, p.Primary.Adds...)
}

// Builder mints memory-stream URLs under a hard length cap.
type Builder struct {
	BaseURL string
	HardCap int

	newID func() string
}

func NewBuilder(baseURL string) *Builder {
	return &Builder{
		BaseURL: baseURL,
		HardCap: wire.FragmentHardCap,
		newID:   func() string { return ulid.Make().String() },
	}
}

// Build serializes a root reference and ordered ancestor list (oldest to
// newest) into a single URL, without regard for the cap.
func (b *Builder) Build(rootRef capsule.PayloadRef, adds []capsule.PayloadRef) (BuiltSegment, error) {
	leaves := make([]string, 0, len(adds)+1)
	leaves = append(leaves, string(rootRef))
	for _, add := range adds {
		leaves = append(leaves, string(add))
	}
	root := capsule.MerkleRoot(leaves)

	meta := Meta{
		Version:    wire.FragmentVersion,
		ID:         b.newID(),
		MerkleRoot: root,
		LeafCount:  len(leaves),
		AddCount:   len(adds),
		ShortRoot:  rootRef.Short(),
	}
	segRef, err := capsule.EncodePayloadRef(meta)
	if err != nil {
		return BuiltSegment{}, err
	}
	url := wire.FormatFragmentURL(b.BaseURL, wire.Fragment{
		Version: wire.FragmentVersion,
		Root:    rootRef,
		Seg:     segRef,
		Adds:    adds,
	})
	return BuiltSegment{
		URL:        url,
		RootRef:    rootRef,
		Adds:       adds,
		MerkleRoot: root,
		LeafCount:  len(leaves),
		AddCount:   len(adds),
	}, nil
}

// FitToBudget drops the minimal count of oldest ancestors so the remaining
// suffix serializes under hardCap, then snaps the kept-count down to the
// nearest Fibonacci number so truncation boundaries repeat across shares.
// Returns the fitted segment and the dropped prefix (oldest-first).
func (b *Builder) FitToBudget(rootRef capsule.PayloadRef, adds []capsule.PayloadRef, hardCap int) (BuiltSegment, []capsule.PayloadRef, error) {
	kept, err := b.fitCount(rootRef, adds, hardCap)
	if err != nil {
		return BuiltSegment{}, nil, err
	}
	seg, err := b.Build(rootRef, adds[len(adds)-kept:])
	if err != nil {
		return BuiltSegment{}, nil, err
	}
	return seg, adds[:len(adds)-kept], nil
}

// fitCount binary-searches the minimal drop count, then applies the
// Fibonacci snap. Snapping only ever shrinks the kept suffix, so the cap is
// never violated. Returns 0 when not even a single ancestor fits.
func (b *Builder) fitCount(rootRef capsule.PayloadRef, adds []capsule.PayloadRef, hardCap int) (int, error) {
	fits := func(drop int) (bool, error) {
		seg, err := b.Build(rootRef, adds[drop:])
		if err != nil {
			return false, err
		}
		return len(seg.URL) <= hardCap, nil
	}

	ok, err := fits(len(adds))
	if err != nil {
		return 0, err
	}
	if !ok {
		// even a zero-add segment is over cap (pathological root)
		return 0, nil
	}

	// smallest drop in [0, len] whose suffix fits
	lo, hi := 0, len(adds)
	for lo < hi {
		mid := (lo + hi) / 2
		ok, err := fits(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return fibFloor(len(adds) - lo), nil
}

// fibFloor returns the largest Fibonacci number <= n, or n itself for n < 1.
func fibFloor(n int) int {
	if n < 1 {
		return n
	}
	a, b := 1, 2
	for b <= n {
		a, b = b, a+b
	}
	return a
}

// BuildSegmentedPack packs an arbitrary-length ancestor chain into one
// in-budget primary segment plus however many archive segments it takes.
// Each archive level promotes the oldest kept entry of the level above to
// its root, so every segment stands alone as a valid stream URL.
func (b *Builder) BuildSegmentedPack(rootRef capsule.PayloadRef, adds []capsule.PayloadRef) (*Pack, error) {
	full, err := b.Build(rootRef, adds)
	if err != nil {
		return nil, err
	}
	if len(full.URL) <= b.HardCap {
		return &Pack{Primary: full}, nil
	}
	return b.packLevel(rootRef, adds, 0)
}

func (b *Builder) packLevel(rootRef capsule.PayloadRef, adds []capsule.PayloadRef, depth int) (*Pack, error) {
	if depth >= maxArchiveDepth {
		// no further progress possible; shed the remaining chain
		seg, err := b.Build(rootRef, nil)
		if err != nil {
			return nil, err
		}
		return &Pack{Primary: seg}, nil
	}

	primary, dropped, err := b.FitToBudget(rootRef, adds, b.HardCap)
	if err != nil {
		return nil, err
	}
	if len(dropped) == 0 {
		return &Pack{Primary: primary}, nil
	}
	if len(primary.Adds) == 0 && len(dropped) == len(adds) {
		// not a single ancestor fits; archiving cannot make progress, so
		// degrade to the root-only segment
		return &Pack{Primary: primary}, nil
	}

	// boundary rotation: the oldest entry the primary kept becomes the
	// archive's root; a zero-add primary keeps the root it already had
	archiveRoot := rootRef
	if len(primary.Adds) > 0 {
		archiveRoot = primary.Adds[0]
	}
	sub, err := b.packLevel(archiveRoot, dropped, depth+1)
	if err != nil {
		return nil, err
	}
	archives := append(sub.Archives, sub.Primary)
	return &Pack{Primary: primary, Archives: archives}, nil
}
