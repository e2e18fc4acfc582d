package wire

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/phigrid/memorystream/capsule"
)

const (
	// PathTokenVersion is the fixed `v` value of the path-token schema.
	PathTokenVersion = 1

	// PathTokenSoftCap is the advisory token length; encoders should start
	// shedding optional fields (caption, attachments) above it.
	PathTokenSoftCap = 1_800

	// PathTokenHardCap is the absolute token length. Above it the encoder
	// must fall back to the fragment form.
	PathTokenHardCap = 3_500

	pathTokenMarker = "/p/"
)

var (
	ErrTokenTooLarge = errors.New("path token exceeds hard budget")
	ErrBadPathToken  = errors.New("invalid path token")
)

// PathToken is the compact secondary URL schema. Unlike capsules it is
// typed: this is the one place the module declares a concrete shape for
// shared posts.
type PathToken struct {
	V            int          `json:"v"`
	URL          string       `json:"url"`
	Pulse        int64        `json:"pulse"`
	Caption      string       `json:"caption,omitempty"`
	Author       string       `json:"author,omitempty"`
	Source       string       `json:"source,omitempty"` // "x" or "manual"
	SigilID      string       `json:"sigilId,omitempty"`
	PhiKey       string       `json:"phiKey,omitempty"`
	KaiSignature string       `json:"kaiSignature,omitempty"`
	Parent       string       `json:"parent,omitempty"`
	ParentURL    string       `json:"parentUrl,omitempty"`
	OriginURL    string       `json:"originUrl,omitempty"`
	TS           string       `json:"ts,omitempty"`
	Attachments  *Attachments `json:"attachments,omitempty"`
}

// EncodePathToken serializes the token to its base64url form, enforcing the
// hard budget. Callers seeing [ErrTokenTooLarge] fall back to the fragment
// form.
func EncodePathToken(tok PathToken) (string, error) {
	tok.V = PathTokenVersion
	canon, err := capsule.Canonicalize(tok)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding.EncodeToString([]byte(canon))
	if len(enc) > PathTokenHardCap {
		return "", fmt.Errorf("%w: %d > %d chars", ErrTokenTooLarge, len(enc), PathTokenHardCap)
	}
	return enc, nil
}

// FormatPathURL builds the full path-form URL under a root route.
func FormatPathURL(rootRoute string, token string) string {
	return strings.TrimRight(rootRoute, "/") + pathTokenMarker + token
}

// DecodePathToken reverses [EncodePathToken]. Accepts either a bare token or
// a full path-form URL containing "/p/<token>".
func DecodePathToken(raw string) (*PathToken, error) {
	token := raw
	if i := strings.LastIndex(raw, pathTokenMarker); i >= 0 {
		token = raw[i+len(pathTokenMarker):]
	}
	if j := strings.IndexAny(token, "?#"); j >= 0 {
		token = token[:j]
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrBadPathToken)
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPathToken, err)
	}
	var tok PathToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPathToken, err)
	}
	if tok.V != PathTokenVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadPathToken, tok.V)
	}
	return &tok, nil
}

// Capsule converts the token into the generic capsule shape used for content
// keying and thread resolution.
func (t *PathToken) Capsule() map[string]any {
	out := map[string]any{
		"url":   t.URL,
		"pulse": t.Pulse,
	}
	setIf := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	setIf("caption", t.Caption)
	setIf("author", t.Author)
	setIf("source", t.Source)
	setIf("sigilId", t.SigilID)
	setIf("phiKey", t.PhiKey)
	setIf("kaiSignature", t.KaiSignature)
	setIf("parent", t.Parent)
	setIf("parentUrl", t.ParentURL)
	setIf("originUrl", t.OriginURL)
	setIf("ts", t.TS)
	return out
}
