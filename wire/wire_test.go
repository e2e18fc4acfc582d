package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phigrid/memorystream/capsule"
)

func mustRef(t *testing.T, v any) capsule.PayloadRef {
	t.Helper()
	ref, err := capsule.EncodePayloadRef(v)
	require.NoError(t, err)
	return ref
}

func TestFragmentRoundTrip(t *testing.T) {
	assert := assert.New(t)

	root := mustRef(t, map[string]any{"text": "root"})
	a1 := mustRef(t, map[string]any{"text": "one"})
	a2 := mustRef(t, map[string]any{"text": "two"})

	raw := FormatFragmentURL("https://example.com/stream", Fragment{
		Version: FragmentVersion,
		Root:    root,
		Adds:    []capsule.PayloadRef{a1, a2},
	})
	f, err := ParseFragmentURL(raw)
	require.NoError(t, err)
	assert.Equal(FragmentVersion, f.Version)
	assert.Equal(root, f.Root)
	assert.Equal([]capsule.PayloadRef{a1, a2}, f.Adds)
	assert.Equal(2, f.Depth())
}

func TestFragmentQueryFallback(t *testing.T) {
	assert := assert.New(t)

	root := mustRef(t, map[string]any{"text": "root"})
	raw := "https://example.com/stream?v=1&root=" + string(root)
	f, err := ParseFragmentURL(raw)
	require.NoError(t, err)
	assert.Equal(root, f.Root)
}

func TestFragmentSkipsMalformedAdds(t *testing.T) {
	assert := assert.New(t)

	root := mustRef(t, map[string]any{"text": "root"})
	good := mustRef(t, map[string]any{"text": "ok"})
	raw := "https://example.com/s#v=1&root=" + string(root) +
		"&add=garbage!&add=" + string(good) + "&add=j:x"
	f, err := ParseFragmentURL(raw)
	require.NoError(t, err)
	assert.Equal([]capsule.PayloadRef{good}, f.Adds)
}

func TestFragmentRejectsMissingRoot(t *testing.T) {
	assert := assert.New(t)

	_, err := ParseFragmentURL("https://example.com/s#v=1&add=j:YWJjZGVmZ2g")
	assert.ErrorIs(err, ErrNotStreamURL)
	_, err = ParseFragmentURL("https://example.com/s")
	assert.ErrorIs(err, ErrNotStreamURL)
}

func TestPathTokenRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tok := PathToken{
		URL:          "https://example.com/m/abc",
		Pulse:        123456,
		Caption:      "a caption",
		Author:       "someone",
		Source:       "manual",
		KaiSignature: "deadbeef",
	}
	enc, err := EncodePathToken(tok)
	require.NoError(t, err)
	assert.LessOrEqual(len(enc), PathTokenSoftCap)

	full := FormatPathURL("https://example.com/stream/", enc)
	assert.Contains(full, "/p/")

	back, err := DecodePathToken(full)
	require.NoError(t, err)
	assert.Equal(PathTokenVersion, back.V)
	assert.Equal(tok.URL, back.URL)
	assert.Equal(tok.Pulse, back.Pulse)
	assert.Equal(tok.Caption, back.Caption)
	assert.Equal(tok.KaiSignature, back.KaiSignature)
}

func TestPathTokenHardCap(t *testing.T) {
	assert := assert.New(t)

	tok := PathToken{
		URL:     "https://example.com/m/abc",
		Pulse:   1,
		Caption: strings.Repeat("x", PathTokenHardCap),
	}
	_, err := EncodePathToken(tok)
	assert.ErrorIs(err, ErrTokenTooLarge)
}

func TestDecodePathTokenRejects(t *testing.T) {
	assert := assert.New(t)

	for _, raw := range []string{"", "/p/", "/p/!!!", "/p/bm90anNvbg"} {
		_, err := DecodePathToken(raw)
		assert.ErrorIs(err, ErrBadPathToken, "input %q", raw)
	}
}

func TestAttachmentItemVariants(t *testing.T) {
	assert := assert.New(t)

	atts := Attachments{
		Version: 1,
		Items: []AttachmentItem{
			{URLRef: "https://example.com/file.png"},
			{Inline: &InlineFile{Name: "note.txt", Type: "text/plain", Size: 5, Data: "aGVsbG8"}},
			{External: &ExternalFileRef{Name: "big.bin", Type: "application/octet-stream", Size: 1 << 20, SHA256: strings.Repeat("ab", 32)}},
		},
	}
	b, err := json.Marshal(atts)
	require.NoError(t, err)

	var back Attachments
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back.Items, 3)
	assert.Equal("https://example.com/file.png", back.Items[0].URLRef)
	require.NotNil(t, back.Items[1].Inline)
	assert.Equal("note.txt", back.Items[1].Inline.Name)
	require.NotNil(t, back.Items[2].External)
	assert.Equal(strings.Repeat("ab", 32), back.Items[2].External.SHA256)
}

func TestAttachmentInlineCap(t *testing.T) {
	assert := assert.New(t)

	item := AttachmentItem{Inline: &InlineFile{Name: "huge", Data: strings.Repeat("A", InlineFileCap+1)}}
	_, err := json.Marshal(item)
	assert.ErrorIs(err, ErrInlineTooLarge)

	blob := `{"name":"huge","type":"x","size":1,"data":"` + strings.Repeat("A", InlineFileCap+1) + `"}`
	var back AttachmentItem
	err = json.Unmarshal([]byte(blob), &back)
	assert.Error(err)
}
