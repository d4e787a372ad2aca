// Package schema compiles and caches JSON-Schema documents for tool input
// validation, grounded in the teacher's pluginsdk config-schema validator.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator compiles tool input schemas once and reuses the compiled
// form on every subsequent call, keyed by tool name.
type Validator struct {
	compiled sync.Map // tool name -> *jsonschema.Schema
}

// NewValidator returns an empty, ready-to-use Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Compile compiles and caches the schema for toolName. Call this once at
// registration time so a malformed schema fails fast at bootstrap rather
// than on the first invocation.
func (v *Validator) Compile(toolName string, schemaDoc any) error {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("schema: marshal schema for %s: %w", toolName, err)
	}

	compiler := jsonschema.NewCompiler()
	resourceName := toolName + ".json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("schema: add resource for %s: %w", toolName, err)
	}

	compiledSchema, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("schema: compile schema for %s: %w", toolName, err)
	}

	v.compiled.Store(toolName, compiledSchema)
	return nil
}

// Validate checks args against toolName's compiled schema. A tool with no
// compiled schema is treated as accepting anything, so handlers with a
// nil/empty InputSchema are not penalized.
func (v *Validator) Validate(toolName string, args map[string]any) error {
	cached, ok := v.compiled.Load(toolName)
	if !ok {
		return nil
	}
	compiledSchema := cached.(*jsonschema.Schema)

	// jsonschema validates against decoded JSON values (map[string]any,
	// []any, float64, ...); round-tripping through json guarantees args
	// matches that shape even when callers built it from other sources.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("schema: marshal args for %s: %w", toolName, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("schema: decode args for %s: %w", toolName, err)
	}

	if err := compiledSchema.Validate(decoded); err != nil {
		return fmt.Errorf("schema: %s: %w", toolName, err)
	}
	return nil
}
