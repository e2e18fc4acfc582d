package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/wire"
)

func testBuilder() *Builder {
	b := NewBuilder("https://example.com/stream")
	// deterministic ids keep probe lengths stable across runs
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("%026d", n)
	}
	return b
}

func refOfSize(t *testing.T, label string, size int) capsule.PayloadRef {
	t.Helper()
	ref, err := capsule.EncodePayloadRef(map[string]any{
		"label": label,
		"pad":   strings.Repeat("x", size),
	})
	require.NoError(t, err)
	return ref
}

func chain(t *testing.T, count, size int) []capsule.PayloadRef {
	t.Helper()
	out := make([]capsule.PayloadRef, count)
	for i := range out {
		out[i] = refOfSize(t, fmt.Sprintf("anc-%03d", i), size)
	}
	return out
}

func TestBuildSingleSegment(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	root := refOfSize(t, "root", 10)
	adds := chain(t, 3, 10)

	seg, err := b.Build(root, adds)
	require.NoError(t, err)
	assert.Equal(root, seg.RootRef)
	assert.Equal(3, seg.AddCount)
	assert.Equal(4, seg.LeafCount)
	assert.NotEmpty(seg.MerkleRoot)

	f, err := wire.ParseFragmentURL(seg.URL)
	require.NoError(t, err)
	assert.Equal(root, f.Root)
	assert.Equal(adds, f.Adds)

	// segment metadata decodes from the seg ref
	metaObj, err := capsule.DecodeCapsule(f.Seg)
	require.NoError(t, err)
	assert.Equal(seg.MerkleRoot, metaObj["merkleRoot"])
	assert.Equal(root.Short(), metaObj["shortRoot"])
}

func TestSmallChainFitsUnsplit(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	root := refOfSize(t, "root", 10)
	adds := chain(t, 5, 20)

	pack, err := b.BuildSegmentedPack(root, adds)
	require.NoError(t, err)
	assert.Empty(pack.Archives)
	assert.Equal(adds, pack.Primary.Adds)
	assert.LessOrEqual(len(pack.Primary.URL), b.HardCap)
}

func TestFitToBudgetFibonacciSnap(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	root := refOfSize(t, "root", 10)
	adds := chain(t, 30, 200)

	// pick a cap that forces a partial keep
	full, err := b.Build(root, adds)
	require.NoError(t, err)
	budget := len(full.URL) * 2 / 3

	seg, dropped, err := b.FitToBudget(root, adds, budget)
	require.NoError(t, err)
	assert.LessOrEqual(len(seg.URL), budget)
	assert.Equal(len(adds), len(seg.Adds)+len(dropped))

	kept := len(seg.Adds)
	assert.Contains([]int{0, 1, 2, 3, 5, 8, 13, 21}, kept)

	// kept suffix is the newest entries, dropped prefix the oldest
	assert.Equal(adds[:len(dropped)], dropped)
	assert.Equal(adds[len(dropped):], seg.Adds)
}

func TestSegmentedPackReconstructsChain(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	b.HardCap = 3500
	root := refOfSize(t, "root", 40)
	adds := chain(t, 50, 500)

	pack, err := b.BuildSegmentedPack(root, adds)
	require.NoError(t, err)
	assert.LessOrEqual(len(pack.Primary.URL), b.HardCap)
	assert.NotEmpty(pack.Archives)

	flat := pack.FlattenAdds()
	require.Equal(t, len(adds), len(flat))
	assert.Equal(adds, flat)

	// every original ancestor appears exactly once
	seen := map[capsule.PayloadRef]int{}
	for _, ref := range flat {
		seen[ref]++
	}
	for _, ref := range adds {
		assert.Equal(1, seen[ref])
	}
}

func TestArchiveBoundaryRotation(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	b.HardCap = 3500
	root := refOfSize(t, "root", 40)
	adds := chain(t, 50, 500)

	pack, err := b.BuildSegmentedPack(root, adds)
	require.NoError(t, err)
	require.NotEmpty(t, pack.Archives)

	// the newest archive's root is the oldest entry the primary kept
	require.NotEmpty(t, pack.Primary.Adds)
	newest := pack.Archives[len(pack.Archives)-1]
	assert.Equal(pack.Primary.Adds[0], newest.RootRef)

	// each archive is itself in budget and a parseable stream URL
	for _, arch := range pack.Archives {
		assert.LessOrEqual(len(arch.URL), b.HardCap)
		_, err := wire.ParseFragmentURL(arch.URL)
		assert.NoError(err)
	}
}

func TestPathologicalHugeAncestor(t *testing.T) {
	assert := assert.New(t)

	b := testBuilder()
	b.HardCap = 3500
	root := refOfSize(t, "root", 40)
	huge := refOfSize(t, "huge", 20_000)

	pack, err := b.BuildSegmentedPack(root, []capsule.PayloadRef{huge})
	require.NoError(t, err)
	assert.LessOrEqual(len(pack.Primary.URL), b.HardCap)
	assert.Empty(pack.Primary.Adds)
}

func TestFibFloor(t *testing.T) {
	assert := assert.New(t)

	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 3, 5: 5, 7: 5, 8: 8, 12: 8, 13: 13, 20: 13, 21: 21, 50: 34}
	for in, want := range cases {
		assert.Equal(want, fibFloor(in), "fibFloor(%d)", in)
	}
}
