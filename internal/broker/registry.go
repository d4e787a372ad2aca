package broker

import (
	"fmt"
	"sync"
)

// Handler is the single, unified handler shape every registered tool
// implements: an explicit RequestScope is always passed, and handlers
// that have no use for it simply don't read it. This replaces the source
// system's dynamic handler signatures (some handlers took a request
// object, some didn't) per the re-architecture note in SPEC_FULL.md §9.
type Handler func(args map[string]any, scope RequestScope) ResultRecord

// ToolDefinition is a registered tool: its name, human description,
// JSON-Schema for arguments, and handler. Name is unique process-wide.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
	Handler     Handler
}

// SchemaValidator is the narrow surface the registry needs from a JSON
// Schema engine: compile a tool's schema once at registration time, then
// validate call arguments against the cached result. Centralizing this in
// Invoke (rather than at the RPC layer) matches the "argument shape is
// checked once, centrally, before the handler runs at all" design.
type SchemaValidator interface {
	Compile(toolName string, schemaDoc any) error
	Validate(toolName string, args map[string]any) error
}

// ToolRegistry is the process-singleton tool catalog. It performs no
// permission enforcement — that is the Authorizer's job — but preserves
// registration order for listDefinitions and invoke lookups.
//
// Every method takes mu, so concurrent use is safe. Register is meant to
// run only during the bootstrap phase, before the server accepts traffic;
// once Seal has run, Register fails and the map is never written again.
type ToolRegistry struct {
	mu        sync.RWMutex
	tools     map[string]ToolDefinition
	order     []string
	sealed    bool
	validator SchemaValidator
}

// NewToolRegistry returns an empty registry, ready for Bootstrap to
// populate via Register.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolDefinition)}
}

// SetValidator attaches a SchemaValidator. Must be called before any
// Register call that should have its schema compiled. A registry with no
// validator attached performs no argument validation, matching its prior
// no-op behavior.
func (r *ToolRegistry) SetValidator(v SchemaValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = v
}

// Register adds a tool definition. It fails with ErrDuplicateTool if name
// is already present, and fails if the registry has been sealed (the
// server has started accepting traffic).
func (r *ToolRegistry) Register(name, description string, schema any, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("broker: cannot register %q: registry is sealed", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	if r.validator != nil && schema != nil {
		if err := r.validator.Compile(name, schema); err != nil {
			return fmt.Errorf("broker: compile schema for %q: %w", name, err)
		}
	}

	r.tools[name] = ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler:     handler,
	}
	r.order = append(r.order, name)
	return nil
}

// Seal marks the registry read-only. Called once bootstrap has finished
// registering every tool and the server is about to start accepting
// requests; Register calls after this point fail.
func (r *ToolRegistry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// ListDefinitions returns the full catalog in registration order.
func (r *ToolRegistry) ListDefinitions() []ToolSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolSummary, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, ToolSummary{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return defs
}

// Lookup returns the full definition for name, for callers (e.g. schema
// validation) that need the handler or schema, not just the summary.
func (r *ToolRegistry) Lookup(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke looks up name and calls its handler with args and scope. It
// fails with ErrUnknownTool if name is absent; the handler itself never
// returns a Go error — its failure shows up inside the ResultRecord.
func (r *ToolRegistry) Invoke(name string, args map[string]any, scope RequestScope) (ResultRecord, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	validator := r.validator
	r.mu.RUnlock()

	if !ok {
		return ResultRecord{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if validator != nil {
		if err := validator.Validate(name, args); err != nil {
			return ResultRecord{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return t.Handler(args, scope), nil
}

// Bootstrap builds a ToolRegistry by calling each provider's Register
// function in order, failing fast on the first error. This is the
// explicit replacement for the source system's import-time, decorator-
// driven registration: no package causes side effects merely by being
// imported, and load order is whatever Bootstrap's caller chooses.
func Bootstrap(registry *ToolRegistry, providers ...func(*ToolRegistry) error) error {
	for _, register := range providers {
		if err := register(registry); err != nil {
			return err
		}
	}
	registry.Seal()
	return nil
}
