package dispatcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/riverforge/contextmcp/internal/apperr"
)

// coerceErr builds the VALIDATION_ERROR envelope's BuildErrorGuidance keys
// off of, carrying the field/expected/actual/hint detail spec.md §4.6 asks
// coercion failures to surface.
func coerceErr(operation, field, expected string, actual any, hint string) error {
	return apperr.New(apperr.CodeValidation, operation,
		fmt.Sprintf("field %q: expected %s, got %v (%s)", field, expected, actual, hint))
}

// params is the raw per-call argument bag every dispatcher tool unmarshals
// its json.RawMessage into before coercing individual fields — spec.md
// §4.6's rules only make sense against an untyped map, since the whole
// point is accepting more than one wire shape per field.
type params map[string]any

func parseParams(raw json.RawMessage) (params, error) {
	var p params
	if len(raw) == 0 {
		return params{}, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return p, nil
}

func (p params) str(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p params) requireStr(operation, key string) (string, error) {
	s, ok := p.str(key)
	if !ok || s == "" {
		return "", coerceErr(operation, key, "non-empty string", p[key], "this field is required")
	}
	return s, nil
}

// intField accepts a JSON number or an integer-valued string, per spec.md
// §4.6's limit-coercion rule. Returns (0, false, nil) when absent.
func (p params) intField(operation, key string) (int, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false, coerceErr(operation, key, "an integer", v, "fractional values are not accepted")
		}
		return int(t), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false, coerceErr(operation, key, "an integer or integer-valued string", v, "could not parse as an integer")
		}
		return n, true, nil
	default:
		return 0, false, coerceErr(operation, key, "an integer or integer-valued string", v, "unsupported type")
	}
}

// limitField implements spec.md §4.6's limit coercion: int or numeric
// string, rejecting anything outside [1, 100] (§8.3: 0, 101, -1 rejected),
// defaulting to def when absent.
func (p params) limitField(operation string, def int) (int, error) {
	n, ok, err := p.intField(operation, "limit")
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	if n < 1 || n > 100 {
		return 0, coerceErr(operation, "limit", "an integer between 1 and 100", n, "limit must be in range [1, 100]")
	}
	return n, nil
}

// boolVariants is the closed set of accepted string spellings for a
// coerced boolean (spec.md §4.6).
var boolVariants = map[string]bool{
	"true": true, "false": false,
	"1": true, "0": false,
	"yes": true, "no": false,
	"on": true, "off": false,
	"enabled": true, "disabled": false,
}

// boolField implements spec.md §4.6's boolean coercion: native bool, or one
// of the accepted string variants (case-insensitive); anything else
// defaults to false with a warning appended to warnings.
func (p params) boolField(key string, warnings *[]string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, ok := boolVariants[strings.ToLower(strings.TrimSpace(t))]; ok {
			return b
		}
		if warnings != nil {
			*warnings = append(*warnings, fmt.Sprintf("field %q: unrecognized boolean value %q, defaulting to false", key, t))
		}
		return false
	default:
		if warnings != nil {
			*warnings = append(*warnings, fmt.Sprintf("field %q: unsupported boolean type %T, defaulting to false", key, v))
		}
		return false
	}
}

// stringList implements spec.md §4.6's list coercion for labels/assignees/
// dependencies: a JSON array of strings, a JSON-array-encoded string (e.g.
// `"[\"a\",\"b\"]"`), a comma-separated string, or a single bare string.
func (p params) stringList(operation, key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, coerceErr(operation, key, "a list of strings", v, "every element must be a string")
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return nil, coerceErr(operation, key, "a JSON array of strings", v, "failed to parse as a JSON array")
			}
			return decoded, nil
		}
		if strings.Contains(trimmed, ",") {
			parts := strings.Split(trimmed, ",")
			out := make([]string, 0, len(parts))
			for _, part := range parts {
				out = append(out, strings.TrimSpace(part))
			}
			return out, nil
		}
		return []string{trimmed}, nil
	default:
		return nil, coerceErr(operation, key, "a list of strings, comma-separated string, or single string", v, "unsupported type")
	}
}

func (p params) docField(key string) map[string]any {
	if v, ok := p[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}
