package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// NormalizeMetadata checks that every value is a scalar and converts numeric
// values to int64 or float64. A nil map stays nil.
func NormalizeMetadata(m Metadata) (Metadata, error) {
	if m == nil {
		return nil, nil
	}

	out := make(Metadata, len(m))
	for k, v := range m {
		if k == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidMetadata)
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidMetadata, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// encodeMetadata serializes metadata for the metadata column.
func encodeMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(raw), nil
}

// decodeMetadata parses the metadata column. Whole numbers decode as int64.
func decodeMetadata(raw string) (Metadata, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var m Metadata
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return NormalizeMetadata(m)
}

// whereClause builds "AND json_extract(...) = ?" conditions for an equality
// filter on the document metadata column aliased as alias. Keys are sorted so
// the generated SQL is stable.
func whereClause(alias string, where Metadata) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		if !metadataKeyPattern.MatchString(k) {
			return "", nil, fmt.Errorf("%w: invalid filter key %q", ErrInvalidMetadata, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		v, err := normalizeValue(where[k])
		if err != nil {
			return "", nil, fmt.Errorf("%w: filter key %q: %v", ErrInvalidMetadata, k, err)
		}
		// JSON booleans come back from json_extract as 1/0
		if b, ok := v.(bool); ok {
			if b {
				v = int64(1)
			} else {
				v = int64(0)
			}
		}
		fmt.Fprintf(&sb, " AND json_extract(%s.metadata, ?) = ?", alias)
		args = append(args, "$."+k, v)
	}
	return sb.String(), args, nil
}
