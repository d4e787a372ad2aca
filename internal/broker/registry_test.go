package broker

import (
	"errors"
	"testing"
)

func noopHandler(args map[string]any, scope RequestScope) ResultRecord {
	return ResultRecord{Success: true}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewToolRegistry()
	if err := r.Register("web_click", "click something", nil, noopHandler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register("web_click", "click something else", nil, noopHandler)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewToolRegistry()
	names := []string{"zeta", "alpha", "mid_tool", "beta"}
	for _, n := range names {
		if err := r.Register(n, "", nil, noopHandler); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}

	defs := r.ListDefinitions()
	if len(defs) != len(names) {
		t.Fatalf("expected %d defs, got %d", len(names), len(defs))
	}
	for i, d := range defs {
		if d.Name != names[i] {
			t.Fatalf("position %d: expected %s, got %s", i, names[i], d.Name)
		}
	}
}

func TestRegistrySealBlocksFurtherRegistration(t *testing.T) {
	r := NewToolRegistry()
	if err := r.Register("tool_a", "", nil, noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Seal()

	if err := r.Register("tool_b", "", nil, noopHandler); err == nil {
		t.Fatal("expected registration after Seal to fail")
	}
}

func TestInvokeUnknownToolFails(t *testing.T) {
	r := NewToolRegistry()
	_, err := r.Invoke("does_not_exist", nil, RequestScope{})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestInvokePassesScopeThrough(t *testing.T) {
	r := NewToolRegistry()
	var seenTokenID string
	handler := func(args map[string]any, scope RequestScope) ResultRecord {
		seenTokenID = scope.TokenID
		return ResultRecord{Success: true}
	}
	if err := r.Register("echo_scope", "", nil, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := r.Invoke("echo_scope", nil, RequestScope{TokenID: "T1"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if seenTokenID != "T1" {
		t.Fatalf("expected handler to see tokenID T1, got %q", seenTokenID)
	}
}

func TestBootstrapRunsProvidersInOrderAndSeals(t *testing.T) {
	r := NewToolRegistry()
	err := Bootstrap(r,
		func(reg *ToolRegistry) error { return reg.Register("first", "", nil, noopHandler) },
		func(reg *ToolRegistry) error { return reg.Register("second", "", nil, noopHandler) },
	)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 tools, got %d", r.Count())
	}
	if err := r.Register("third", "", nil, noopHandler); err == nil {
		t.Fatal("expected registry to be sealed after Bootstrap")
	}
}

type stubValidator struct {
	compileErr  error
	validateErr error
	compiled    []string
}

func (s *stubValidator) Compile(name string, schemaDoc any) error {
	s.compiled = append(s.compiled, name)
	return s.compileErr
}

func (s *stubValidator) Validate(name string, args map[string]any) error {
	return s.validateErr
}

func TestRegisterCompilesSchemaThroughValidator(t *testing.T) {
	r := NewToolRegistry()
	v := &stubValidator{}
	r.SetValidator(v)

	if err := r.Register("web_navigate", "", map[string]any{"type": "object"}, noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(v.compiled) != 1 || v.compiled[0] != "web_navigate" {
		t.Fatalf("expected Compile to run once for web_navigate, got %v", v.compiled)
	}
}

func TestInvokeRejectsArgsFailingValidation(t *testing.T) {
	r := NewToolRegistry()
	r.SetValidator(&stubValidator{validateErr: errors.New("missing field")})

	if err := r.Register("web_navigate", "", map[string]any{"type": "object"}, noopHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Invoke("web_navigate", nil, RequestScope{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBootstrapStopsOnFirstError(t *testing.T) {
	r := NewToolRegistry()
	err := Bootstrap(r,
		func(reg *ToolRegistry) error { return reg.Register("dup", "", nil, noopHandler) },
		func(reg *ToolRegistry) error { return reg.Register("dup", "", nil, noopHandler) },
		func(reg *ToolRegistry) error { return reg.Register("never_reached", "", nil, noopHandler) },
	)
	if err == nil {
		t.Fatal("expected bootstrap to fail on duplicate registration")
	}
	if _, ok := r.Lookup("never_reached"); ok {
		t.Fatal("provider after the failing one should not have run")
	}
}
