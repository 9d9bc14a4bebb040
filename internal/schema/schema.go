package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType enumerates the supported field types of a form schema
type FieldType string

const (
	TypeString  FieldType = "STRING"
	TypeText    FieldType = "TEXT"
	TypeArray   FieldType = "ARRAY"
	TypeNumber  FieldType = "NUMBER"
	TypeDate    FieldType = "DATE"
	TypeURL     FieldType = "URL"
	TypeBoolean FieldType = "BOOLEAN"
)

// IsValid returns true if the field type is a known value
func (t FieldType) IsValid() bool {
	switch t {
	case TypeString, TypeText, TypeArray, TypeNumber, TypeDate, TypeURL, TypeBoolean:
		return true
	}
	return false
}

// Field describes one schema field
type Field struct {
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	// Options constrains the value to an enumerated set. When set it must be
	// non-empty.
	Options []string `json:"options,omitempty"`
}

// Schema is a named validation schema for form payloads
type Schema struct {
	Fields map[string]Field `json:"fields"`
}

// FieldNames returns the declared field names in stable order
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes a schema document from its stored JSON form
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	return &s, nil
}

// ValidateDocument checks that a schema document itself is well formed. Used
// by the administrative write path before a schema is persisted.
func ValidateDocument(s *Schema) []string {
	var errs []string
	if s == nil || len(s.Fields) == 0 {
		return []string{"schema must declare at least one field"}
	}

	for _, name := range s.FieldNames() {
		field := s.Fields[name]
		if !field.Type.IsValid() {
			errs = append(errs, fmt.Sprintf("field '%s' has unknown type '%s'", name, field.Type))
		}
		if field.Options != nil && len(field.Options) == 0 {
			errs = append(errs, fmt.Sprintf("field '%s' declares an empty options list", name))
		}
	}
	return errs
}
