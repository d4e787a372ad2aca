package execshell

import (
	"testing"
	"time"

	"github.com/haasonsaas/brokerd/internal/broker"
)

func TestRegisterAddsExecuteShellTool(t *testing.T) {
	r := broker.NewToolRegistry()
	if err := Register(r, t.TempDir(), 5*time.Second); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Lookup(ToolName); !ok {
		t.Fatal("expected execute_shell to be registered")
	}
}

func TestRunSucceedsOnZeroExit(t *testing.T) {
	result := run(map[string]any{"command": "true"}, t.TempDir(), 5*time.Second)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ReturnCode != 0 {
		t.Fatalf("expected return code 0, got %d", result.ReturnCode)
	}
}

func TestRunCapturesNonZeroExit(t *testing.T) {
	result := run(map[string]any{"command": "false"}, t.TempDir(), 5*time.Second)
	if result.Success {
		t.Fatal("expected failure for non-zero exit")
	}
	if result.ReturnCode != 1 {
		t.Fatalf("expected return code 1, got %d", result.ReturnCode)
	}
	if result.ErrorKind != "UpstreamError" {
		t.Fatalf("expected UpstreamError, got %s", result.ErrorKind)
	}
}

func TestRunRejectsUnsafeCommand(t *testing.T) {
	result := run(map[string]any{"command": "rm; rm -rf /"}, t.TempDir(), 5*time.Second)
	if result.Success {
		t.Fatal("expected validation failure for unsafe command")
	}
	if result.ErrorKind != "ValidationError" {
		t.Fatalf("expected ValidationError, got %s", result.ErrorKind)
	}
}

func TestRunTimesOutAndKillsProcessGroup(t *testing.T) {
	result := run(map[string]any{
		"command": "sleep",
		"args":    []any{"5"},
		"timeout": float64(1),
	}, t.TempDir(), 5*time.Second)

	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.ErrorKind != "TimeoutError" {
		t.Fatalf("expected TimeoutError, got %s", result.ErrorKind)
	}
}

func TestRunCapturesStdout(t *testing.T) {
	result := run(map[string]any{
		"command": "echo",
		"args":    []any{"hello"},
	}, t.TempDir(), 5*time.Second)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
}

func TestSanitizeExecutableValueAllowsBareNamesAndPaths(t *testing.T) {
	for _, value := range []string{"echo", "/bin/echo", "./script.sh", "~/bin/tool"} {
		if _, err := sanitizeExecutableValue(value); err != nil {
			t.Errorf("sanitizeExecutableValue(%q): expected allowed, got %v", value, err)
		}
	}
}

func TestSanitizeExecutableValueRejectsShellMetacharsAndInjection(t *testing.T) {
	cases := map[string]error{
		"":               errEmptyValue,
		"  ":             errEmptyValue,
		"echo; rm -rf /": errShellMetachar,
		"echo\n":         errControlChar,
		`echo"`:          errQuoteChar,
		"-rf":            errOptionInjection,
		"ec ho":          errInvalidBareNameChars,
	}
	for value, want := range cases {
		if _, err := sanitizeExecutableValue(value); err != want {
			t.Errorf("sanitizeExecutableValue(%q): want %v, got %v", value, want, err)
		}
	}
}

func TestSanitizeArgumentAllowsLeadingDashAndQuotes(t *testing.T) {
	for _, arg := range []string{"-rf", `"quoted"`, "value"} {
		if _, err := sanitizeArgument(arg); err != nil {
			t.Errorf("sanitizeArgument(%q): expected allowed, got %v", arg, err)
		}
	}
}

func TestSanitizeArgumentRejectsControlAndMetachars(t *testing.T) {
	cases := map[string]error{
		"":          errEmptyArgument,
		"a\x00b":    errArgumentNullByte,
		"line\none": errArgumentControlChar,
		"$(whoami)": errArgumentShellMetachar,
	}
	for arg, want := range cases {
		if _, err := sanitizeArgument(arg); err != want {
			t.Errorf("sanitizeArgument(%q): want %v, got %v", arg, want, err)
		}
	}
}
