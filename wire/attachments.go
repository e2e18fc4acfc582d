package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InlineFileCap bounds the base64url data of a single inlined file. Larger
// files must travel as external refs (sha256 + optional URL).
const InlineFileCap = 6_000

var ErrInlineTooLarge = errors.New("inline attachment exceeds per-file cap")

// Attachments is the attachment list carried by a path token.
type Attachments struct {
	Version      int              `json:"version"`
	TotalBytes   int64            `json:"totalBytes,omitempty"`
	InlinedBytes int64            `json:"inlinedBytes,omitempty"`
	Items        []AttachmentItem `json:"items"`
}

// AttachmentItem is one of three wire variants:
//
//   - url-ref: a bare string
//   - inline-file: object with a `data` field (base64url content)
//   - external-file-ref: object with a `sha256` field and optional URL
//
// Exactly one of URLRef, Inline, External is set after decoding.
type AttachmentItem struct {
	URLRef   string
	Inline   *InlineFile
	External *ExternalFileRef
}

type InlineFile struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	Data      string `json:"data"` // base64url
	Thumbnail string `json:"thumbnail,omitempty"`
}

type ExternalFileRef struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"` // hex
	URL    string `json:"url,omitempty"`
}

func (a AttachmentItem) MarshalJSON() ([]byte, error) {
	switch {
	case a.Inline != nil:
		if len(a.Inline.Data) > InlineFileCap {
			return nil, fmt.Errorf("%w: %q is %d chars", ErrInlineTooLarge, a.Inline.Name, len(a.Inline.Data))
		}
		return json.Marshal(a.Inline)
	case a.External != nil:
		return json.Marshal(a.External)
	default:
		return json.Marshal(a.URLRef)
	}
}

func (a *AttachmentItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.URLRef = s
		return nil
	}
	var probe struct {
		Data   *string `json:"data"`
		SHA256 *string `json:"sha256"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("attachment item is neither string nor object: %w", err)
	}
	if probe.Data != nil {
		var f InlineFile
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		if len(f.Data) > InlineFileCap {
			return fmt.Errorf("%w: %q is %d chars", ErrInlineTooLarge, f.Name, len(f.Data))
		}
		a.Inline = &f
		return nil
	}
	if probe.SHA256 != nil {
		var f ExternalFileRef
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		a.External = &f
		return nil
	}
	return errors.New("attachment object has neither data nor sha256")
}
