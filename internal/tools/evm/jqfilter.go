package evm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// applyJQFilter implements the small jq-style filter the paid-fetch tool
// accepts: either simple dot-path field access (".field.sub", with "." as
// identity) or object construction ("{key: .field, key2: .other.field}").
func applyJQFilter(value any, filter string) (any, error) {
	filter = strings.TrimSpace(filter)
	if strings.HasPrefix(filter, "{") && strings.HasSuffix(filter, "}") {
		inner := filter[1 : len(filter)-1]
		result := map[string]any{}
		for _, part := range splitObjectFields(inner) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			idx := strings.Index(part, ":")
			if idx < 0 {
				continue
			}
			key := strings.TrimSpace(part[:idx])
			path := strings.TrimSpace(part[idx+1:])
			extracted, err := extractField(value, path)
			if err != nil {
				return nil, err
			}
			result[key] = extracted
		}
		return result, nil
	}
	return extractField(value, filter)
}

// splitObjectFields splits a comma-separated field list, respecting nested
// braces/brackets so "{a: .x, b: [.y, .z]}" doesn't split inside "[.y, .z]".
func splitObjectFields(s string) []string {
	var fields []string
	var current strings.Builder
	depth := 0
	for _, c := range s {
		switch c {
		case '{', '[':
			depth++
			current.WriteRune(c)
		case '}', ']':
			depth--
			current.WriteRune(c)
		case ',':
			if depth == 0 {
				fields = append(fields, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
			current.WriteRune(c)
		default:
			current.WriteRune(c)
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		fields = append(fields, rest)
	}
	return fields
}

// extractField navigates a dot-notation path ("." is identity) through a
// decoded JSON value (map[string]any / []any / scalars).
func extractField(value any, path string) (any, error) {
	path = strings.TrimSpace(path)
	if path == "." || path == "" {
		return value, nil
	}
	path = strings.TrimPrefix(path, ".")

	current := value
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found", part)
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("cannot access %q on array", part)
			}
			if idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %d out of bounds", idx)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot access %q on non-object", part)
		}
	}
	return current, nil
}

func prettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
