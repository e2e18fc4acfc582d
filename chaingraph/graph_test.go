package chaingraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertNoopOnIdentical(t *testing.T) {
	assert := assert.New(t)

	g, err := New(16)
	require.NoError(t, err)

	n := Node{PrevKey: "p", PayloadRef: "j:abc", FallbackRef: "https://x/1"}
	g.Upsert("k", n)
	v1 := g.Version()

	g.Upsert("k", n)
	assert.Equal(v1, g.Version())

	// changed link replaces and bumps the version
	n.PayloadRef = "j:def"
	g.Upsert("k", n)
	assert.Greater(g.Version(), v1)
	got, ok := g.Get("k")
	require.True(t, ok)
	assert.Equal("j:def", got.PayloadRef)
}

func TestNotificationsCoalesce(t *testing.T) {
	assert := assert.New(t)

	g, err := New(1024)
	require.NoError(t, err)

	var calls int
	var lastVersion uint64
	cancel := g.Subscribe(func(v uint64) {
		calls++
		lastVersion = v
	})
	defer cancel()

	for i := 0; i < 100; i++ {
		g.Upsert(fmt.Sprintf("k%d", i), Node{PayloadRef: "j:abc"})
	}
	g.Flush()
	assert.Equal(1, calls)
	assert.Equal(g.Version(), lastVersion)

	// a clean graph delivers nothing
	g.Flush()
	assert.Equal(1, calls)

	// next batch delivers exactly once more
	g.Upsert("again", Node{PayloadRef: "j:xyz"})
	g.Flush()
	assert.Equal(2, calls)
}

func TestSubscribeCancel(t *testing.T) {
	assert := assert.New(t)

	g, err := New(16)
	require.NoError(t, err)

	var calls int
	cancel := g.Subscribe(func(uint64) { calls++ })
	g.Upsert("a", Node{PayloadRef: "j:abc"})
	g.Flush()
	assert.Equal(1, calls)

	cancel()
	g.Upsert("b", Node{PayloadRef: "j:abc"})
	g.Flush()
	assert.Equal(1, calls)
}

func TestAncestorList(t *testing.T) {
	assert := assert.New(t)

	g, err := New(64)
	require.NoError(t, err)

	// a <- b <- c <- d
	g.Upsert("a", Node{PayloadRef: "j:aa"})
	g.Upsert("b", Node{PrevKey: "a", PayloadRef: "j:bb"})
	g.Upsert("c", Node{PrevKey: "b", FallbackRef: "https://x/c"})
	g.Upsert("d", Node{PrevKey: "c", PayloadRef: "j:dd"})

	got := g.AncestorList("d", 10)
	assert.Equal([]string{"j:aa", "j:bb", "https://x/c"}, got)

	// limit keeps the nearest ancestors
	got = g.AncestorList("d", 2)
	assert.Equal([]string{"j:bb", "https://x/c"}, got)

	// unknown key
	assert.Nil(g.AncestorList("zz", 10))
}

func TestAncestorListCycleStops(t *testing.T) {
	assert := assert.New(t)

	g, err := New(64)
	require.NoError(t, err)

	g.Upsert("a", Node{PrevKey: "b", PayloadRef: "j:aa"})
	g.Upsert("b", Node{PrevKey: "a", PayloadRef: "j:bb"})

	got := g.AncestorList("a", 10)
	assert.Equal([]string{"j:bb"}, got)
}

func TestEvictionBound(t *testing.T) {
	assert := assert.New(t)

	g, err := New(8)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		g.Upsert(fmt.Sprintf("k%d", i), Node{PayloadRef: "j:abc"})
	}
	assert.Equal(8, g.Len())

	// oldest-inserted entries went first
	_, ok := g.Get("k0")
	assert.False(ok)
	_, ok = g.Get("k19")
	assert.True(ok)
}
