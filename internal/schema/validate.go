package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// urlPattern matches absolute http(s)/ftp URLs, the only link kinds form
// payloads may carry.
var urlPattern = regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)

// Result aggregates the outcome of a payload validation
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Validate checks a payload against a schema. A nil schema means the source is
// unconstrained and validation trivially succeeds. Errors are aggregated, not
// short-circuited, and returned in deterministic order: per-key checks over
// the payload's sorted keys first, then required-field checks over the
// schema's sorted field names.
func Validate(s *Schema, payload map[string]any) Result {
	if s == nil {
		return Result{IsValid: true, Errors: []string{}}
	}

	errs := []string{}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, declared := s.Fields[key]
		if !declared {
			errs = append(errs, fmt.Sprintf("unknown field '%s'", key))
			continue
		}
		if msg := checkValue(key, field, payload[key]); msg != "" {
			errs = append(errs, msg)
		}
	}

	for _, name := range s.FieldNames() {
		if !s.Fields[name].Required {
			continue
		}
		if isMissing(payload[name]) {
			errs = append(errs, fmt.Sprintf("field '%s' is required", name))
		}
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// Hydrate produces a schema-shaped view of partial data: every declared field
// is present, set from the data when available and nil otherwise; undeclared
// keys are dropped. A nil schema returns the data unchanged.
func Hydrate(s *Schema, data map[string]any) map[string]any {
	if s == nil {
		return data
	}

	hydrated := make(map[string]any, len(s.Fields))
	for name := range s.Fields {
		if value, ok := data[name]; ok {
			hydrated[name] = value
		} else {
			hydrated[name] = nil
		}
	}
	return hydrated
}

// checkValue applies the type check for one declared field. A nil value always
// passes regardless of the declared type.
func checkValue(name string, field Field, value any) string {
	if value == nil {
		return ""
	}

	switch field.Type {
	case TypeString, TypeText:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field '%s' must be a string", name)
		}
		return checkOptions(name, field, s)
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Sprintf("field '%s' must be an array", name)
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if msg := checkOptions(name, field, s); msg != "" {
				return msg
			}
		}
		return ""
	case TypeNumber:
		if !isNumeric(value) {
			return fmt.Sprintf("field '%s' must be a number", name)
		}
		return ""
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field '%s' must be a date string", name)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Sprintf("field '%s' must be a valid ISO-8601 date", name)
		}
		return ""
	case TypeURL:
		s, ok := value.(string)
		if !ok || !urlPattern.MatchString(s) {
			return fmt.Sprintf("field '%s' must be a valid URL", name)
		}
		return ""
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("field '%s' must be a boolean", name)
		}
		return ""
	default:
		return fmt.Sprintf("field '%s' has unknown type '%s'", name, field.Type)
	}
}

func checkOptions(name string, field Field, value string) string {
	if len(field.Options) == 0 {
		return ""
	}
	for _, opt := range field.Options {
		if opt == value {
			return ""
		}
	}
	return fmt.Sprintf("field '%s' must be one of its declared options", name)
}

func isNumeric(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int32, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

func isMissing(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" {
		return true
	}
	return false
}
