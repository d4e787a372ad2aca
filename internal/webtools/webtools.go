// Package webtools registers the web_* tool family, each a thin handler
// delegating to a pagefacade.Facade bound to the process's single remote
// agent connection. Tool names and argument shapes are grounded in
// original_source/src/mcp_server/tools/web_playwright/web_playwright.py's
// @registry.register names (web_navigate, web_screenshot, web_click, ...);
// the handler bodies are new, since individual tool implementations are
// explicitly out of scope — only enough is implemented here to exercise
// the broker/agenthub/pagefacade wiring end to end.
package webtools

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/haasonsaas/brokerd/internal/agenthub"
	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/pagefacade"
)

// Register adds the web_* tool family to r, each delegating to facade.
func Register(r *broker.ToolRegistry, facade *pagefacade.Facade) error {
	tools := []struct {
		name        string
		description string
		schema      map[string]any
		handler     broker.Handler
	}{
		{"web_navigate", "Navigates the remote agent's page to a URL.", objectSchema([]string{"url"}, map[string]any{
			"url":        map[string]any{"type": "string"},
			"wait_until": map[string]any{"type": "string"},
			"timeout_ms": map[string]any{"type": "integer"},
		}), navigateHandler(facade)},
		{"web_get_url", "Returns the remote agent's current page URL.", objectSchema(nil, nil), getURLHandler(facade)},
		{"web_get_title", "Returns the remote agent's current page title.", objectSchema(nil, nil), getTitleHandler(facade)},
		{"web_click", "Clicks an element matching a selector.", objectSchema([]string{"selector"}, map[string]any{
			"selector": map[string]any{"type": "string"},
			"index":    map[string]any{"type": "integer"},
		}), clickHandler(facade)},
		{"web_screenshot", "Captures the current page as PNG/JPEG bytes, base64-encoded in metadata.", objectSchema(nil, map[string]any{
			"full_page": map[string]any{"type": "boolean"},
		}), screenshotHandler(facade)},
		{"web_clear_cookies", "Clears every cookie from the remote agent's page.", objectSchema(nil, nil), clearCookiesHandler(facade)},
		{"web_scroll", "Scrolls the page to the top, bottom, a selector, or by a pixel count.", objectSchema(nil, map[string]any{
			"scroll_type": map[string]any{"type": "string", "enum": []any{"top", "bottom", "selector", "pixels"}},
			"selector":    map[string]any{"type": "string"},
			"pixels":      map[string]any{"type": "integer"},
			"timeout_ms":  map[string]any{"type": "integer"},
		}), scrollHandler(facade)},
	}

	for _, t := range tools {
		if err := r.Register(t.name, t.description, t.schema, t.handler); err != nil {
			return err
		}
	}
	return nil
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	schema := map[string]any{"type": "object"}
	if properties != nil {
		schema["properties"] = properties
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func navigateHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		url, _ := args["url"].(string)
		waitUntil := stringOr(args["wait_until"], "load")
		timeoutMs := intOr(args["timeout_ms"], 30000)

		if err := facade.Navigate(url, waitUntil, timeoutMs); err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{
			Success:       true,
			ExecutionTime: time.Since(start).String(),
			Metadata:      map[string]any{"url": url},
		}
	}
}

func getURLHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		url, err := facade.GetURL()
		if err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{Success: true, ExecutionTime: time.Since(start).String(), Metadata: map[string]any{"url": url}}
	}
}

func getTitleHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		title, err := facade.GetTitle()
		if err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{Success: true, ExecutionTime: time.Since(start).String(), Metadata: map[string]any{"title": title}}
	}
}

func clickHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		selector, _ := args["selector"].(string)
		index := intOr(args["index"], 0)

		if err := facade.Click(selector, index, 1); err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{Success: true, ExecutionTime: time.Since(start).String(), Metadata: map[string]any{"selector": selector}}
	}
}

func screenshotHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		fullPage, _ := args["full_page"].(bool)

		data, err := facade.Screenshot(fullPage)
		if err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{
			Success:       true,
			ExecutionTime: time.Since(start).String(),
			Metadata:      map[string]any{"bytes": len(data), "base64": base64.StdEncoding.EncodeToString(data)},
		}
	}
}

func clearCookiesHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		if err := facade.ClearCookies(); err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{Success: true, ExecutionTime: time.Since(start).String()}
	}
}

func scrollHandler(facade *pagefacade.Facade) broker.Handler {
	return func(args map[string]any, scope broker.RequestScope) broker.ResultRecord {
		start := time.Now()
		scrollType := stringOr(args["scroll_type"], "bottom")
		selector, _ := args["selector"].(string)
		pixels := intOr(args["pixels"], 0)
		timeoutMs := intOr(args["timeout_ms"], 30000)

		position, err := facade.Scroll(scrollType, selector, pixels, timeoutMs)
		if err != nil {
			return remoteFailure(err, start)
		}
		return broker.ResultRecord{
			Success:       true,
			ExecutionTime: time.Since(start).String(),
			Metadata:      map[string]any{"scroll_type": scrollType, "scroll_position": position},
		}
	}
}

// remoteFailure maps an AgentCallSite/PageFacade error onto the
// handler-layer error taxonomy spec.md §7 describes: the call succeeded
// at the protocol level, so these are never JSON-RPC errors.
func remoteFailure(err error, start time.Time) broker.ResultRecord {
	return broker.ResultRecord{
		Success:       false,
		ExecutionTime: time.Since(start).String(),
		ErrorKind:     classifyAgentError(err),
		ErrorMessage:  err.Error(),
	}
}

// classifyAgentError maps agenthub/pagefacade errors onto the
// ResultRecord.ErrorKind vocabulary spec.md §7 names for handler-layer
// failures: TimeoutError, RemoteError, Disconnected, UpstreamError.
func classifyAgentError(err error) string {
	var remoteErr *agenthub.RemoteError
	switch {
	case errors.Is(err, agenthub.ErrTimeout):
		return "TimeoutError"
	case errors.Is(err, agenthub.ErrDisconnected), errors.Is(err, agenthub.ErrShuttingDown):
		return "Disconnected"
	case errors.Is(err, agenthub.ErrNoAgent):
		return "UpstreamError"
	case errors.As(err, &remoteErr):
		return "RemoteError"
	default:
		return "Unexpected"
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return fallback
}
