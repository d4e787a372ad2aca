package webtools

import (
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/brokerd/internal/agenthub"
	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/pagefacade"
)

type fakeSender struct {
	reply map[string]any
	err   error
}

func (f *fakeSender) Send(action string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	return f.reply, f.err
}

func TestRegisterAddsWebToolFamily(t *testing.T) {
	r := broker.NewToolRegistry()
	facade := pagefacade.New(&fakeSender{reply: map[string]any{}})
	if err := Register(r, facade); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, name := range []string{"web_navigate", "web_get_url", "web_get_title", "web_click", "web_screenshot", "web_clear_cookies", "web_scroll"} {
		if _, ok := r.Lookup(name); !ok {
			t.Fatalf("expected %s to be registered", name)
		}
	}
}

func TestGetURLHandlerReturnsAgentValueInMetadata(t *testing.T) {
	facade := pagefacade.New(&fakeSender{reply: map[string]any{"url": "https://example.com"}})
	r := broker.NewToolRegistry()
	_ = Register(r, facade)

	result, err := r.Invoke("web_get_url", nil, broker.RequestScope{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Metadata["url"] != "https://example.com" {
		t.Fatalf("unexpected metadata: %v", result.Metadata)
	}
}

func TestScrollHandlerReturnsScrollPositionInMetadata(t *testing.T) {
	facade := pagefacade.New(&fakeSender{reply: map[string]any{
		"scroll_position": map[string]any{"x": float64(0), "y": float64(800)},
	}})
	r := broker.NewToolRegistry()
	_ = Register(r, facade)

	result, err := r.Invoke("web_scroll", map[string]any{"scroll_type": "bottom"}, broker.RequestScope{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Metadata["scroll_type"] != "bottom" {
		t.Fatalf("unexpected metadata: %v", result.Metadata)
	}
	pos, ok := result.Metadata["scroll_position"].(map[string]any)
	if !ok || pos["y"] != float64(800) {
		t.Fatalf("unexpected scroll_position: %v", result.Metadata["scroll_position"])
	}
}

func TestNavigateHandlerSurfacesTimeoutAsHandlerLayerFailure(t *testing.T) {
	facade := pagefacade.New(&fakeSender{err: agenthub.ErrTimeout})
	r := broker.NewToolRegistry()
	_ = Register(r, facade)

	result, err := r.Invoke("web_navigate", map[string]any{"url": "https://example.com"}, broker.RequestScope{})
	if err != nil {
		t.Fatalf("invoke should not return a Go error for handler-layer failures: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.ErrorKind != "TimeoutError" {
		t.Fatalf("expected TimeoutError, got %s", result.ErrorKind)
	}
}

func TestClassifyAgentErrorMapsRemoteError(t *testing.T) {
	kind := classifyAgentError(&agenthub.RemoteError{Message: "boom"})
	if kind != "RemoteError" {
		t.Fatalf("expected RemoteError, got %s", kind)
	}
}

func TestClassifyAgentErrorMapsShuttingDownToDisconnected(t *testing.T) {
	kind := classifyAgentError(agenthub.ErrShuttingDown)
	if kind != "Disconnected" {
		t.Fatalf("expected Disconnected, got %s", kind)
	}
}

func TestClassifyAgentErrorDefaultsToUnexpected(t *testing.T) {
	kind := classifyAgentError(errors.New("something else"))
	if kind != "Unexpected" {
		t.Fatalf("expected Unexpected, got %s", kind)
	}
}
