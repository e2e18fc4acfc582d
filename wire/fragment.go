package wire

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/phigrid/memorystream/capsule"
)

// FragmentVersion is the current protocol version carried in the `v` key.
const FragmentVersion = 1

// FragmentHardCap bounds the serialized length of a full fragment-form URL.
// Anything larger must be segmented before it reaches the wire.
const FragmentHardCap = 120_000

var ErrNotStreamURL = errors.New("not a memory-stream URL")

// Fragment is the decoded payload of a fragment-form URL.
type Fragment struct {
	Version int
	Root    capsule.PayloadRef
	Seg     capsule.PayloadRef   // segment metadata ref, optional
	Adds    []capsule.PayloadRef // witness chain, oldest to newest
}

// Depth returns the witness-chain depth.
func (f *Fragment) Depth() int {
	return len(f.Adds)
}

// FormatFragmentURL serializes a fragment onto a base URL. The base's own
// fragment, if any, is replaced.
func FormatFragmentURL(base string, f Fragment) string {
	var sb strings.Builder
	sb.WriteString(strings.SplitN(base, "#", 2)[0])
	sb.WriteByte('#')
	sb.WriteString("v=")
	sb.WriteString(strconv.Itoa(f.Version))
	sb.WriteString("&root=")
	sb.WriteString(url.QueryEscape(string(f.Root)))
	if f.Seg != "" {
		sb.WriteString("&seg=")
		sb.WriteString(url.QueryEscape(string(f.Seg)))
	}
	for _, add := range f.Adds {
		sb.WriteString("&add=")
		sb.WriteString(url.QueryEscape(string(add)))
	}
	return sb.String()
}

// ParseFragmentURL decodes a fragment-form URL. The URL fragment is
// preferred; the query string is accepted as a fallback for transports that
// strip fragments. Malformed `add` entries are skipped rather than failing
// the whole URL; a missing or invalid root fails with [ErrNotStreamURL].
func ParseFragmentURL(raw string) (*Fragment, error) {
	values, err := StreamValues(raw)
	if err != nil {
		return nil, err
	}
	rootRaw := values.Get("root")
	if rootRaw == "" {
		return nil, fmt.Errorf("%w: no root reference", ErrNotStreamURL)
	}
	root, err := capsule.ParsePayloadRef(rootRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad root: %v", ErrNotStreamURL, err)
	}
	f := Fragment{
		Version: FragmentVersion,
		Root:    root,
	}
	if v, err := strconv.Atoi(values.Get("v")); err == nil {
		f.Version = v
	}
	if segRaw := values.Get("seg"); segRaw != "" {
		if seg, err := capsule.ParsePayloadRef(segRaw); err == nil {
			f.Seg = seg
		}
	}
	for _, addRaw := range values["add"] {
		add, err := capsule.ParsePayloadRef(addRaw)
		if err != nil {
			continue
		}
		f.Adds = append(f.Adds, add)
	}
	return &f, nil
}

// StreamValues returns a stream URL's key/value pairs, reading the fragment
// when it carries stream keys and falling back to the query string.
func StreamValues(raw string) (url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStreamURL, err)
	}
	values := parseValues(u.EscapedFragment())
	if values.Get("root") == "" && len(values["add"]) == 0 {
		values = parseValues(u.RawQuery)
	}
	return values, nil
}

// parseValues is url.ParseQuery that tolerates broken escapes by dropping
// only the affected pair.
func parseValues(raw string) url.Values {
	out := url.Values{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out[key] = append(out[key], val)
	}
	return out
}
