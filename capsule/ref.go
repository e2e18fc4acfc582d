package capsule

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PayloadRefPrefix marks a payload reference token.
const PayloadRefPrefix = "j:"

// minRefTokenLen is the shortest accepted base64url body. Anything shorter
// cannot hold a meaningful capsule and is treated as noise from URL mangling.
const minRefTokenLen = 4

var ErrInvalidPayloadRef = errors.New("invalid payload reference")

// PayloadRef is a self-contained content address: the "j:" prefix followed by
// base64url (unpadded) of the capsule's canonical JSON. The same capsule
// always yields the same ref, and the ref decodes back to a deep-equal
// capsule with no store lookup.
//
// Always use [ParsePayloadRef] on network input instead of casting strings.
type PayloadRef string

var b64 = base64.RawURLEncoding

// EncodePayloadRef derives the payload reference for a capsule.
func EncodePayloadRef(v any) (PayloadRef, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return PayloadRef(PayloadRefPrefix + b64.EncodeToString([]byte(canon))), nil
}

// ParsePayloadRef validates a raw token as a payload reference without
// decoding the body.
func ParsePayloadRef(raw string) (PayloadRef, error) {
	body, ok := strings.CutPrefix(raw, PayloadRefPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidPayloadRef, PayloadRefPrefix)
	}
	if len(body) < minRefTokenLen {
		return "", fmt.Errorf("%w: token too short", ErrInvalidPayloadRef)
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return "", fmt.Errorf("%w: byte %q outside base64url alphabet", ErrInvalidPayloadRef, c)
		}
	}
	return PayloadRef(raw), nil
}

// DecodePayloadRef decodes a payload reference back to the generic capsule
// shape. Failures return a typed error wrapping [ErrInvalidPayloadRef]; the
// function never panics on malformed input.
func DecodePayloadRef(ref PayloadRef) (any, error) {
	if _, err := ParsePayloadRef(string(ref)); err != nil {
		return nil, err
	}
	raw, err := b64.DecodeString(string(ref)[len(PayloadRefPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayloadRef, err)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: not canonical JSON: %v", ErrInvalidPayloadRef, err)
	}
	return out, nil
}

// DecodeCapsule is DecodePayloadRef restricted to object-shaped payloads,
// which is what every real capsule is.
func DecodeCapsule(ref PayloadRef) (map[string]any, error) {
	v, err := DecodePayloadRef(ref)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not an object", ErrInvalidPayloadRef)
	}
	return obj, nil
}

func (r PayloadRef) String() string {
	return string(r)
}

// Short returns a fixed-length display prefix of the reference body, used in
// segment metadata and logs.
func (r PayloadRef) Short() string {
	body := strings.TrimPrefix(string(r), PayloadRefPrefix)
	if len(body) > 12 {
		body = body[:12]
	}
	return body
}

func (r PayloadRef) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

func (r *PayloadRef) UnmarshalText(text []byte) error {
	ref, err := ParsePayloadRef(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
