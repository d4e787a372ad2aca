package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/metrics"
)

// Endpoint serves POST/GET /mcp. Its four-phase handling of POST
// (authorize, parse, dispatch, encode) and GET's auth-gated health probe
// follow spec.md §4.3 and are grounded in the original app.py handlers.
// Argument schema validation happens inside registry.Invoke (spec.md
// §4.14); the endpoint only needs to translate the errors it returns.
type Endpoint struct {
	registry   *broker.ToolRegistry
	authorizer *broker.Authorizer
	metrics    *metrics.Metrics
	logger     *slog.Logger

	serverName         string
	serverVersion      string
	workDir            string
	defaultExecTimeout time.Duration
	tokensConfigured   bool
	startedAt          time.Time
}

// New builds an Endpoint.
func New(registry *broker.ToolRegistry, authorizer *broker.Authorizer, m *metrics.Metrics, logger *slog.Logger, workDir string, defaultExecTimeout time.Duration, tokensConfigured bool) *Endpoint {
	return &Endpoint{
		registry:           registry,
		authorizer:         authorizer,
		metrics:            m,
		logger:             logger,
		serverName:         "brokerd",
		serverVersion:      "1.0.0",
		workDir:            workDir,
		defaultExecTimeout: defaultExecTimeout,
		tokensConfigured:   tokensConfigured,
		startedAt:          time.Now(),
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		e.handlePost(w, r)
	case http.MethodGet:
		e.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePost implements the four phases of spec.md §4.3: authorize,
// parse, dispatch, encode.
func (e *Endpoint) handlePost(w http.ResponseWriter, r *http.Request) {
	// Phase 1: authorize.
	scope, err := e.authorizer.ParseAndResolve(r.Header.Get("Authorization"))
	if err != nil {
		e.writeAuthFailure(w, err)
		return
	}

	// Phase 2: parse.
	var req Request
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		e.metrics.ObserveRPCRequest("", "parse_error")
		e.writeJSON(w, http.StatusOK, failure(nil, CodeParseError, "Parse error: Invalid JSON", nil))
		return
	}

	// Phase 3: dispatch.
	result, rpcErr := e.dispatch(req, scope)

	// Phase 4: encode.
	if rpcErr != nil {
		e.metrics.ObserveRPCRequest(req.Method, "error")
		e.writeJSON(w, http.StatusOK, failure(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data))
		return
	}
	e.metrics.ObserveRPCRequest(req.Method, "ok")
	e.writeJSON(w, http.StatusOK, success(req.ID, result))
}

func (e *Endpoint) dispatch(req Request, scope broker.RequestScope) (any, *Error) {
	switch req.Method {
	case "initialize":
		return e.handleInitialize(), nil
	case "tools/list":
		return e.handleToolsList(scope), nil
	case "tools/call":
		return e.handleToolsCall(req, scope)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}
}

func (e *Endpoint) handleInitialize() any {
	return map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    e.serverName,
			"version": e.serverVersion,
		},
	}
}

func (e *Endpoint) handleToolsList(scope broker.RequestScope) any {
	all := e.registry.ListDefinitions()
	filtered := e.authorizer.FilterDefinitions(scope.Policy, all)

	tools := make([]toolSummaryJSON, 0, len(filtered))
	for _, t := range filtered {
		tools = append(tools, toolSummaryJSON{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return map[string]any{"tools": tools}
}

func (e *Endpoint) handleToolsCall(req Request, scope broker.RequestScope) (any, *Error) {
	var params toolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %s", err.Error())}
		}
	}

	if !e.authorizer.CanInvoke(scope.Policy, params.Name) {
		e.logger.Warn("tool call denied", "tool", params.Name)
		return nil, &Error{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("Permission denied: Tool '%s' is not allowed for this API Key", params.Name),
			Data:    map[string]any{"tool": params.Name},
		}
	}

	invokeStart := time.Now()
	record, err := e.invokeSafely(params.Name, params.Arguments, scope)
	e.metrics.ObserveToolDuration(params.Name, time.Since(invokeStart).Seconds())
	if err != nil {
		if errors.Is(err, broker.ErrValidation) {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %s", err.Error())}
		}
		return nil, &Error{Code: CodeMethodNotFound, Message: err.Error()}
	}

	content := []contentBlock{{Type: "text", Text: record.Render()}}
	return toolsCallResult{Content: content, IsError: !record.Success, Metadata: record.Metadata}, nil
}

// invokeSafely calls the registry, recovering from a handler panic and
// converting it into a failed ResultRecord (ErrorKind "Unexpected", the
// panic value as ErrorMessage) with a nil error. A panicking handler
// therefore yields a tools/call result with isError true, not a -32603
// JSON-RPC error.
func (e *Endpoint) invokeSafely(name string, args map[string]any, scope broker.RequestScope) (record broker.ResultRecord, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("tool handler panicked", "tool", name, "panic", rec)
			record = broker.ResultRecord{
				Success:      false,
				ErrorKind:    "Unexpected",
				ErrorMessage: fmt.Sprintf("%v", rec),
			}
		}
	}()
	return e.registry.Invoke(name, args, scope)
}

func (e *Endpoint) writeAuthFailure(w http.ResponseWriter, err error) {
	switch err {
	case broker.ErrMissingAuth:
		w.Header().Set("WWW-Authenticate", "Bearer")
		e.writeJSON(w, http.StatusUnauthorized, failure(nil, CodeMissingAuth, "Missing or malformed Authorization header. Expected format: 'Authorization: Bearer <token>'", nil))
	case broker.ErrInvalidToken:
		e.writeJSON(w, http.StatusForbidden, failure(nil, CodeHTTPError, "Invalid API Key", nil))
	default:
		e.writeJSON(w, http.StatusInternalServerError, failure(nil, CodeHTTPError, err.Error(), nil))
	}
}

// handleGet serves the auth-gated health probe. Per the distilled
// system's original (app.py's mcp_get), GET /mcp requires the same auth
// as POST.
func (e *Endpoint) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := e.authorizer.ParseAndResolve(r.Header.Get("Authorization")); err != nil {
		e.writeAuthFailure(w, err)
		return
	}

	e.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"authenticated": true,
		"protocol":      "MCP 2024-11-05",
		"version":       e.serverVersion,
		"tools_loaded":  e.registry.Count(),
		"security": map[string]any{
			"api_key_required": e.tokensConfigured,
			"auth_method":      authMethodLabel(e.tokensConfigured),
		},
		"runtime": map[string]any{
			"go_version":    runtime.Version(),
			"goos":          runtime.GOOS,
			"goarch":        runtime.GOARCH,
			"num_goroutine": runtime.NumGoroutine(),
		},
		"config": map[string]any{
			"work_directory":       e.workDir,
			"default_exec_timeout": e.defaultExecTimeout.Seconds(),
		},
		"stats": map[string]any{
			"uptime_seconds": time.Since(e.startedAt).Seconds(),
		},
	})
}

func authMethodLabel(tokensConfigured bool) string {
	if tokensConfigured {
		return "Authorization: Bearer <token>"
	}
	return "None (development mode)"
}

func (e *Endpoint) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Error("failed to encode response", "error", err)
	}
}
