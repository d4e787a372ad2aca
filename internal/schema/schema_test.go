package schema

import "testing"

func TestCompileAndValidateAcceptsMatchingArgs(t *testing.T) {
	v := NewValidator()
	schemaDoc := map[string]any{
		"type":     "object",
		"required": []string{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}
	if err := v.Compile("web_navigate", schemaDoc); err != nil {
		t.Fatalf("compile: %v", err)
	}

	if err := v.Validate("web_navigate", map[string]any{"url": "https://example.com"}); err != nil {
		t.Fatalf("expected valid args to pass: %v", err)
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	v := NewValidator()
	schemaDoc := map[string]any{
		"type":     "object",
		"required": []string{"url"},
	}
	if err := v.Compile("web_navigate", schemaDoc); err != nil {
		t.Fatalf("compile: %v", err)
	}

	if err := v.Validate("web_navigate", map[string]any{}); err == nil {
		t.Fatal("expected missing required field to fail validation")
	}
}

func TestValidateWithoutCompiledSchemaAcceptsAnything(t *testing.T) {
	v := NewValidator()
	if err := v.Validate("unregistered_tool", map[string]any{"anything": true}); err != nil {
		t.Fatalf("expected no-schema tools to accept any args: %v", err)
	}
}
