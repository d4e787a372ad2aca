// Package execshell registers the execute_shell tool: a subprocess
// runner that validates its command/arguments, runs the child in its own
// process group, and kills the group on timeout. The command/argument
// sanitizers in safety.go are adapted from the teacher's internal/exec
// validators, folded directly into this package since execute_shell is
// their only caller.
package execshell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"syscall"
	"time"

	"github.com/haasonsaas/brokerd/internal/broker"
)

// ToolName is the name execute_shell registers under.
const ToolName = "execute_shell"

// InputSchema describes execute_shell's arguments.
var InputSchema = map[string]any{
	"type":     "object",
	"required": []any{"command"},
	"properties": map[string]any{
		"command": map[string]any{"type": "string", "description": "executable name or path"},
		"args":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"timeout": map[string]any{"type": "integer", "minimum": 1, "description": "seconds before the process group is killed; capped at the server's configured default execution timeout"},
	},
}

// Register adds execute_shell to r, bound to workDir and defaultTimeout.
func Register(r *broker.ToolRegistry, workDir string, defaultTimeout time.Duration) error {
	return r.Register(ToolName, "Runs a shell command in an isolated process group with a timeout.", InputSchema,
		func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
			return run(args, workDir, defaultTimeout)
		})
}

func run(args map[string]any, workDir string, defaultTimeout time.Duration) broker.ResultRecord {
	start := time.Now()

	command, _ := args["command"].(string)
	if sanitized, err := sanitizeExecutableValue(command); err != nil {
		return failure("ValidationError", err.Error(), start)
	} else {
		command = sanitized
	}

	argv, err := parseArgs(args["args"])
	if err != nil {
		return failure("ValidationError", err.Error(), start)
	}

	// A caller-supplied timeout may only shorten the call, never lengthen
	// it past defaultTimeout: the HTTP server's WriteTimeout is sized as
	// defaultTimeout+30s on the assumption that no single execute_shell
	// call can run longer than that, matching the 300s cap
	// original_source/.../execute_shell.py enforces on its own timeout
	// argument.
	timeout := defaultTimeout
	if raw, ok := args["timeout"]; ok {
		if seconds, ok := toFloat(raw); ok && seconds > 0 {
			requested := time.Duration(seconds) * time.Second
			if requested < timeout {
				timeout = requested
			}
		}
	}

	scratch, err := os.MkdirTemp(workDir, "exec-*")
	if err != nil {
		return failure("Unexpected", fmt.Sprintf("create scratch dir: %v", err), start)
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := osexec.CommandContext(ctx, command, argv...)
	cmd.Dir = scratch
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Start()
	if runErr == nil {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case runErr = <-done:
		case <-ctx.Done():
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
			runErr = <-done
			return broker.ResultRecord{
				Success:       false,
				Stdout:        stdout.String(),
				Stderr:        stderr.String(),
				ReturnCode:    -1,
				ExecutionTime: time.Since(start).String(),
				ErrorKind:     "TimeoutError",
				ErrorMessage:  fmt.Sprintf("command timed out after %s", timeout),
			}
		}
	}

	returnCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*osexec.ExitError); ok {
			returnCode = exitErr.ExitCode()
		} else {
			return failure("Unexpected", runErr.Error(), start)
		}
	}

	return broker.ResultRecord{
		Success:       returnCode == 0,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ReturnCode:    returnCode,
		ExecutionTime: time.Since(start).String(),
		ErrorKind:     errorKindForExit(returnCode),
		ErrorMessage:  messageForExit(returnCode),
	}
}

func errorKindForExit(code int) string {
	if code == 0 {
		return ""
	}
	return "UpstreamError"
}

func messageForExit(code int) string {
	if code == 0 {
		return ""
	}
	return fmt.Sprintf("process exited with code %d", code)
}

func failure(kind, message string, start time.Time) broker.ResultRecord {
	return broker.ResultRecord{
		Success:       false,
		ReturnCode:    -1,
		ExecutionTime: time.Since(start).String(),
		ErrorKind:     kind,
		ErrorMessage:  message,
	}
}

func parseArgs(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	argv := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("args must all be strings")
		}
		sanitized, err := sanitizeArgument(s)
		if err != nil {
			return nil, err
		}
		argv = append(argv, sanitized)
	}
	return argv, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
