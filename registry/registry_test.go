package registry

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phigrid/memorystream/capsule"
	"github.com/phigrid/memorystream/wire"
)

func streamURL(t *testing.T, text string, depth int) string {
	t.Helper()
	root, err := capsule.EncodePayloadRef(map[string]any{"text": text})
	require.NoError(t, err)
	adds := make([]capsule.PayloadRef, depth)
	for i := range adds {
		adds[i], err = capsule.EncodePayloadRef(map[string]any{"text": fmt.Sprintf("%s-anc-%d", text, i)})
		require.NoError(t, err)
	}
	return wire.FormatFragmentURL("https://example.com/s", wire.Fragment{
		Version: wire.FragmentVersion,
		Root:    root,
		Adds:    adds,
	})
}

func TestUpsertMonotonicScore(t *testing.T) {
	assert := assert.New(t)

	r := New(RoleContent, nil, nil)

	shallow := streamURL(t, "post", 1)
	deep := streamURL(t, "post", 4)

	assert.True(r.Upsert("k", shallow))
	got, ok := r.Get("k")
	require.True(t, ok)
	assert.Equal(shallow, got)

	// deeper witness chain replaces
	assert.True(r.Upsert("k", deep))
	got, _ = r.Get("k")
	assert.Equal(deep, got)

	// shallower never replaces deeper
	assert.False(r.Upsert("k", shallow))
	got, _ = r.Get("k")
	assert.Equal(deep, got)

	// re-registering the current best is an idempotent no-op
	assert.False(r.Upsert("k", deep))
}

func TestUpsertLengthTiebreak(t *testing.T) {
	assert := assert.New(t)

	r := New(RoleContent, nil, nil)
	long := streamURL(t, "post", 0) + "&pad=" + strings.Repeat("z", 50)
	short := streamURL(t, "post", 0)

	r.Upsert("k", long)
	assert.True(r.Upsert("k", short))
	got, _ := r.Get("k")
	assert.Equal(short, got)

	assert.False(r.Upsert("k", long))
}

func TestReplacementKeepsPosition(t *testing.T) {
	assert := assert.New(t)

	r := New(RoleFeed, nil, nil)
	r.Upsert("a", streamURL(t, "a", 0))
	r.Upsert("b", streamURL(t, "b", 0))
	r.Upsert("c", streamURL(t, "c", 0))
	r.Upsert("b", streamURL(t, "b", 3))

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal([]string{"a", "b", "c"}, []string{snap[0].Key, snap[1].Key, snap[2].Key})
	assert.Equal(3, snap[1].Depth)
}

func TestUpsertURLDerivesKey(t *testing.T) {
	assert := assert.New(t)

	r := New(RoleContent, nil, nil)
	url := streamURL(t, "derive-me", 2)
	assert.True(r.UpsertURL(url))

	key, err := wire.ContentKeyForURL(url)
	require.NoError(t, err)
	got, ok := r.Get(key)
	assert.True(ok)
	assert.Equal(url, got)

	assert.False(r.UpsertURL("https://example.com/not-a-stream"))
}

func TestNotifierSignalsOnChange(t *testing.T) {
	assert := assert.New(t)

	n := NewLocalNotifier()
	r := New(RoleContent, nil, n)

	var signals int
	cancel := n.Subscribe("registry:content", func() { signals++ })
	defer cancel()

	url := streamURL(t, "post", 1)
	r.Upsert("k", url)
	assert.Equal(1, signals)

	// no-op upsert publishes nothing
	r.Upsert("k", url)
	assert.Equal(1, signals)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	store, err := OpenStore(dir)
	require.NoError(t, err)

	url := streamURL(t, "persisted", 2)
	r := New(RoleContent, store, nil)
	r.Upsert("ignored-key-form", url)
	require.NoError(t, store.Close())

	store2, err := OpenStore(dir)
	require.NoError(t, err)
	defer store2.Close()

	r2 := New(RoleContent, store2, nil)
	key, err := wire.ContentKeyForURL(url)
	require.NoError(t, err)
	got, ok := r2.Get(key)
	assert.True(ok)
	assert.Equal(url, got)

	// roles are isolated stores
	r3 := New(RoleFeed, store2, nil)
	_, ok = r3.Get(key)
	assert.False(ok)
}

func TestDecodePersistedLegacyShapes(t *testing.T) {
	assert := assert.New(t)

	urls, err := decodePersisted([]byte(`["https://a","https://b"]`))
	require.NoError(t, err)
	assert.Equal([]string{"https://a", "https://b"}, urls)

	urls, err = decodePersisted([]byte(`{"k2":"https://b","k1":"https://a"}`))
	require.NoError(t, err)
	assert.Equal([]string{"https://a", "https://b"}, urls)

	_, err = decodePersisted([]byte(`42`))
	assert.Error(err)
}
