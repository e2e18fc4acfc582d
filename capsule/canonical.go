package capsule

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxSafeInteger is the largest integer exactly representable in a float64
// (2^53 - 1). Integers beyond this range are canonicalized as strings so the
// encoding survives peers that parse all JSON numbers as floats.
const MaxSafeInteger = 1<<53 - 1

// Canonicalize serializes a value to canonical JSON: object keys sorted
// lexically, array order preserved, non-finite numbers mapped to null, and
// integers outside the safe range stringified. The output is a pure function
// of logical content, so two deep-equal values always canonicalize to the
// same bytes.
func Canonicalize(v any) (string, error) {
	var sb strings.Builder
	if err := writeCanonical(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeCanonical(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		return writeJSONString(sb, val)
	case json.Number:
		return writeNumber(sb, val.String())
	case int:
		return writeInt(sb, int64(val))
	case int64:
		return writeInt(sb, val)
	case uint64:
		if val > MaxSafeInteger {
			return writeJSONString(sb, strconv.FormatUint(val, 10))
		}
		sb.WriteString(strconv.FormatUint(val, 10))
	case float64:
		return writeFloat(sb, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeJSONString(sb, k); err != nil {
				return err
			}
			sb.WriteByte(':')
			if err := writeCanonical(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	default:
		// structs and other typed values go through a JSON round trip into
		// the generic shape, then canonicalize as such
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("canonicalize: unsupported value: %w", err)
		}
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("canonicalize: %w", err)
		}
		return writeCanonical(sb, generic)
	}
	return nil
}

func writeInt(sb *strings.Builder, v int64) error {
	if v > MaxSafeInteger || v < -MaxSafeInteger {
		return writeJSONString(sb, strconv.FormatInt(v, 10))
	}
	sb.WriteString(strconv.FormatInt(v, 10))
	return nil
}

func writeFloat(sb *strings.Builder, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		sb.WriteString("null")
		return nil
	}
	if v == math.Trunc(v) && math.Abs(v) <= MaxSafeInteger {
		sb.WriteString(strconv.FormatInt(int64(v), 10))
		return nil
	}
	sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	return nil
}

func writeNumber(sb *strings.Builder, s string) error {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return writeInt(sb, i)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		sb.WriteString("null")
		return nil
	}
	return writeFloat(sb, f)
}

func writeJSONString(sb *strings.Builder, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	sb.Write(b)
	return nil
}
