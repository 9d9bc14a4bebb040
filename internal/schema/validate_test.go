package schema

import (
	"strings"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Fields: map[string]Field{
			"name":     {Type: TypeString, Required: true},
			"email":    {Type: TypeString, Required: true},
			"bio":      {Type: TypeText},
			"modality": {Type: TypeString, Required: true, Options: []string{"presencial", "online"}},
			"topics":   {Type: TypeArray, Options: []string{"go", "rust", "zig"}},
			"age":      {Type: TypeNumber},
			"birthday": {Type: TypeDate},
			"website":  {Type: TypeURL},
			"consent":  {Type: TypeBoolean},
		},
	}
}

func validPayload() map[string]any {
	return map[string]any{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"modality": "presencial",
		"age":      float64(30),
		"birthday": "1995-04-23",
		"website":  "https://example.com/ana",
		"consent":  true,
	}
}

func TestValidate_ValidPayload(t *testing.T) {
	result := Validate(testSchema(), validPayload())
	if !result.IsValid {
		t.Errorf("Expected valid payload, got errors: %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no errors, got %d", len(result.Errors))
	}
}

func TestValidate_NilSchemaAlwaysPasses(t *testing.T) {
	result := Validate(nil, map[string]any{"anything": 123, "at": "all"})
	if !result.IsValid {
		t.Errorf("Expected nil schema to accept everything, got %v", result.Errors)
	}
}

func TestValidate_UnknownField(t *testing.T) {
	result := Validate(testSchema(), map[string]any{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"modality": "online",
		"foo":      1,
	})
	if result.IsValid {
		t.Fatal("Expected validation to fail")
	}

	var unknownErrs []string
	for _, msg := range result.Errors {
		if strings.Contains(msg, "unknown field") {
			unknownErrs = append(unknownErrs, msg)
		}
	}
	if len(unknownErrs) != 1 {
		t.Fatalf("Expected exactly one unknown-field error, got %v", result.Errors)
	}
	if !strings.Contains(unknownErrs[0], "'foo'") {
		t.Errorf("Expected error to name 'foo', got %q", unknownErrs[0])
	}
}

func TestValidate_TypeChecks(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   any
		wantErr string
	}{
		{"string ok", "name", "Ana", ""},
		{"string wrong type", "name", 42, "must be a string"},
		{"text wrong type", "bio", []any{"x"}, "must be a string"},
		{"array ok", "topics", []any{"go"}, ""},
		{"array wrong type", "topics", "go", "must be an array"},
		{"array bad option", "topics", []any{"cobol"}, "declared options"},
		{"number int ok", "age", 30, ""},
		{"number wrong type", "age", "30", "must be a number"},
		{"date ok", "birthday", "2024-12-31", ""},
		{"date not a date", "birthday", "soon", "ISO-8601"},
		{"date wrong type", "birthday", 20241231, "date string"},
		{"url ok", "website", "http://example.com", ""},
		{"url ftp ok", "website", "ftp://files.example.com/a.txt", ""},
		{"url relative", "website", "/about", "valid URL"},
		{"url wrong scheme", "website", "gopher://example.com", "valid URL"},
		{"bool ok", "consent", false, ""},
		{"bool wrong type", "consent", "yes", "must be a boolean"},
		{"option mismatch", "modality", "hybrid", "declared options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			payload[tt.field] = tt.value

			result := Validate(testSchema(), payload)
			if tt.wantErr == "" {
				if !result.IsValid {
					t.Errorf("Expected valid, got errors: %v", result.Errors)
				}
				return
			}

			if result.IsValid {
				t.Fatalf("Expected error containing %q, got none", tt.wantErr)
			}
			found := false
			for _, msg := range result.Errors {
				if strings.Contains(msg, tt.wantErr) && strings.Contains(msg, tt.field) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected an error for %q containing %q, got %v", tt.field, tt.wantErr, result.Errors)
			}
		})
	}
}

func TestValidate_NullAlwaysPassesTypeChecks(t *testing.T) {
	payload := validPayload()
	payload["bio"] = nil
	payload["topics"] = nil
	payload["age"] = nil
	payload["birthday"] = nil
	payload["website"] = nil
	payload["consent"] = nil

	result := Validate(testSchema(), payload)
	if !result.IsValid {
		t.Errorf("Expected nulls to pass type checks, got %v", result.Errors)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		missing string
	}{
		{"absent", func(p map[string]any) { delete(p, "email") }, "email"},
		{"null", func(p map[string]any) { p["email"] = nil }, "email"},
		{"empty string", func(p map[string]any) { p["name"] = "" }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(payload)

			result := Validate(testSchema(), payload)
			if result.IsValid {
				t.Fatal("Expected validation to fail")
			}
			found := false
			for _, msg := range result.Errors {
				if strings.Contains(msg, "'"+tt.missing+"'") && strings.Contains(msg, "required") {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected required error for %q, got %v", tt.missing, result.Errors)
			}
		})
	}
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	result := Validate(testSchema(), map[string]any{
		"foo":      1,
		"bar":      2,
		"age":      "old",
		"modality": "presencial",
	})
	if result.IsValid {
		t.Fatal("Expected validation to fail")
	}

	// Two unknown fields, one type error, two missing required fields.
	if len(result.Errors) != 5 {
		t.Errorf("Expected 5 aggregated errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestHydrate(t *testing.T) {
	s := testSchema()
	hydrated := Hydrate(s, map[string]any{
		"name":      "Ana Souza",
		"stray_key": "dropped",
		"another":   42,
	})

	if len(hydrated) != len(s.Fields) {
		t.Errorf("Expected %d fields, got %d", len(s.Fields), len(hydrated))
	}
	if hydrated["name"] != "Ana Souza" {
		t.Errorf("Expected name to be copied, got %v", hydrated["name"])
	}
	if v, ok := hydrated["email"]; !ok || v != nil {
		t.Errorf("Expected missing declared field to be nil, got %v (present=%v)", v, ok)
	}
	if _, ok := hydrated["stray_key"]; ok {
		t.Error("Expected undeclared field to be dropped")
	}
}

func TestHydrate_RoundTrip(t *testing.T) {
	// Hydrating a payload that passes validation must never introduce a
	// schema violation.
	s := testSchema()
	payload := validPayload()

	if result := Validate(s, payload); !result.IsValid {
		t.Fatalf("Setup payload invalid: %v", result.Errors)
	}

	hydrated := Hydrate(s, payload)
	if result := Validate(s, hydrated); !result.IsValid {
		t.Errorf("Hydrated payload failed validation: %v", result.Errors)
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		wantErr bool
	}{
		{"valid", testSchema(), false},
		{"nil", nil, true},
		{"no fields", &Schema{}, true},
		{"unknown type", &Schema{Fields: map[string]Field{"x": {Type: "BLOB"}}}, true},
		{"empty options", &Schema{Fields: map[string]Field{"x": {Type: TypeString, Options: []string{}}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDocument(tt.schema)
			if tt.wantErr && len(errs) == 0 {
				t.Error("Expected document errors, got none")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Errorf("Expected valid document, got %v", errs)
			}
		})
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`{"fields":{"name":{"type":"STRING","required":true},"modality":{"type":"STRING","required":true,"options":["presencial","online"]}}}`)

	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(s.Fields) != 2 {
		t.Errorf("Expected 2 fields, got %d", len(s.Fields))
	}
	if s.Fields["modality"].Options[0] != "presencial" {
		t.Errorf("Expected options to be preserved, got %v", s.Fields["modality"].Options)
	}

	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("Expected parse error for malformed document")
	}
}
