// Package pagefacade adapts an agenthub.CallSite into a fixed vocabulary
// of browser-automation operations for tool handlers, so a handler never
// talks to the wire protocol directly. Grounded in the distilled system's
// original PageProxy/ElementProxy (remote/page_proxy.py), collapsed per
// the "duck-typed page proxy" re-architecture note into a single async
// facade with no stale sync properties.
package pagefacade

import (
	"encoding/base64"
	"fmt"
	"time"
)

// sender is the subset of agenthub.CallSite the facade needs; defined
// here so this package depends only on a narrow interface, not the whole
// agenthub package.
type sender interface {
	Send(action string, params map[string]any, timeout time.Duration) (map[string]any, error)
}

// timeoutSlack is added to every agent-visible timeout, per spec.md §4.6's
// uniform +5s default (see DESIGN.md for why this repo does not special-
// case navigate to +10s the way the original did).
const timeoutSlack = 5 * time.Second

// Facade exposes browser-style operations as plain Go methods. It never
// exposes a synchronous "url" or "viewportSize" property — every piece of
// page state is fetched fresh, on demand, over the wire.
type Facade struct {
	send sender
}

// New builds a Facade bound to send.
func New(send sender) *Facade {
	return &Facade{send: send}
}

func agentTimeout(ms int) time.Duration {
	return time.Duration(ms)*time.Millisecond + timeoutSlack
}

// Navigate loads url, waiting until waitUntil (load, domcontentloaded,
// networkidle, commit) with timeoutMs before the agent gives up.
func (f *Facade) Navigate(url, waitUntil string, timeoutMs int) error {
	_, err := f.send.Send("navigate", map[string]any{
		"url": url, "wait_until": waitUntil, "timeout": timeoutMs,
	}, agentTimeout(timeoutMs))
	return err
}

// Screenshot captures the current page (or the full scrollable page if
// fullPage is set) and returns the decoded PNG/JPEG bytes.
func (f *Facade) Screenshot(fullPage bool) ([]byte, error) {
	data, err := f.send.Send("screenshot", map[string]any{"full_page": fullPage}, 60*time.Second)
	if err != nil {
		return nil, err
	}
	return decodeBase64Field(data, "base64")
}

// GetURL fetches the page's current URL fresh from the agent.
func (f *Facade) GetURL() (string, error) {
	data, err := f.send.Send("get_url", nil, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "url"), nil
}

// GetTitle fetches the page's current title fresh from the agent.
func (f *Facade) GetTitle() (string, error) {
	data, err := f.send.Send("get_title", nil, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "title"), nil
}

// GetViewport fetches the current viewport size as {width, height}.
func (f *Facade) GetViewport() (map[string]any, error) {
	data, err := f.send.Send("get_viewport", nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if viewport, ok := data["viewport"].(map[string]any); ok {
		return viewport, nil
	}
	return nil, nil
}

// WaitForSelector blocks until selector reaches state (visible, hidden,
// attached, detached) or timeoutMs elapses, returning whether it was found.
func (f *Facade) WaitForSelector(selector, state string, timeoutMs int) (bool, error) {
	data, err := f.send.Send("wait_for_selector", map[string]any{
		"selector": selector, "timeout": timeoutMs, "state": state,
	}, agentTimeout(timeoutMs))
	if err != nil {
		return false, err
	}
	return boolField(data, "found"), nil
}

// WaitForUrl blocks until the page URL matches urlPattern (glob-style) or
// timeoutMs elapses.
func (f *Facade) WaitForUrl(urlPattern string, timeoutMs int) error {
	_, err := f.send.Send("wait_for_url", map[string]any{
		"url_pattern": urlPattern, "timeout": timeoutMs,
	}, agentTimeout(timeoutMs))
	return err
}

// WaitForFunction blocks until script evaluates truthy in the page or
// timeoutMs elapses.
func (f *Facade) WaitForFunction(script string, timeoutMs int) error {
	_, err := f.send.Send("wait_for_function", map[string]any{
		"script": script, "timeout": timeoutMs,
	}, agentTimeout(timeoutMs))
	return err
}

// WaitForTimeout pauses for timeoutMs, agent-side.
func (f *Facade) WaitForTimeout(timeoutMs int) error {
	_, err := f.send.Send("wait_for_timeout", map[string]any{"timeout": timeoutMs}, agentTimeout(timeoutMs))
	return err
}

// Scroll scrolls the page as a whole: scrollType is one of "top",
// "bottom", "selector" (scrolls selector into view), or "pixels" (scrolls
// by the signed pixel count). selector and pixels are only meaningful for
// their matching scrollType and are otherwise ignored agent-side. Returns
// the page's scroll position after the agent reports settling.
func (f *Facade) Scroll(scrollType, selector string, pixels, timeoutMs int) (map[string]any, error) {
	data, err := f.send.Send("scroll", map[string]any{
		"scroll_type": scrollType, "selector": selector, "pixels": pixels, "timeout": timeoutMs,
	}, agentTimeout(timeoutMs))
	if err != nil {
		return nil, err
	}
	if pos, ok := data["scroll_position"].(map[string]any); ok {
		return pos, nil
	}
	return nil, nil
}

// QueryCount returns how many elements match selector.
func (f *Facade) QueryCount(selector string) (int, error) {
	data, err := f.send.Send("query_selector_all", map[string]any{"selector": selector}, 10*time.Second)
	if err != nil {
		return 0, err
	}
	return intField(data, "count"), nil
}

// InnerText returns selector's text content.
func (f *Facade) InnerText(selector string) (string, error) {
	data, err := f.send.Send("inner_text", map[string]any{"selector": selector}, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "text"), nil
}

// GetContent returns the page's full HTML.
func (f *Facade) GetContent() (string, error) {
	data, err := f.send.Send("get_content", nil, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "html"), nil
}

// Evaluate runs script in the page, optionally passing arg, and returns
// whatever the agent reports back.
func (f *Facade) Evaluate(script string, arg any) (any, error) {
	params := map[string]any{"script": script}
	if arg != nil {
		params["arg"] = arg
	}
	data, err := f.send.Send("evaluate", params, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return data["result"], nil
}

// Click clicks selector clickCount times.
func (f *Facade) Click(selector string, index, clickCount int) error {
	_, err := f.send.Send("element_click", map[string]any{
		"selector": selector, "index": index, "click_count": clickCount,
	}, 10*time.Second)
	return err
}

// TypeText types text into selector with an optional per-keystroke delay.
func (f *Facade) TypeText(selector string, index int, text string, delayMs int) error {
	_, err := f.send.Send("element_type", map[string]any{
		"selector": selector, "index": index, "text": text, "delay": delayMs,
	}, 10*time.Second)
	return err
}

// Press sends a single keypress to selector.
func (f *Facade) Press(selector string, index int, key string) error {
	_, err := f.send.Send("element_press", map[string]any{
		"selector": selector, "index": index, "key": key,
	}, 10*time.Second)
	return err
}

// ElementInnerText returns the text content of one matched element.
func (f *Facade) ElementInnerText(selector string, index int) (string, error) {
	data, err := f.send.Send("element_inner_text", map[string]any{
		"selector": selector, "index": index,
	}, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "text"), nil
}

// ElementGetAttribute returns attribute name of one matched element.
func (f *Facade) ElementGetAttribute(selector string, index int, name string) (string, error) {
	data, err := f.send.Send("element_get_attribute", map[string]any{
		"selector": selector, "index": index, "name": name,
	}, 10*time.Second)
	if err != nil {
		return "", err
	}
	return stringField(data, "value"), nil
}

// ElementScreenshot captures one matched element.
func (f *Facade) ElementScreenshot(selector string, index int) ([]byte, error) {
	data, err := f.send.Send("element_screenshot", map[string]any{
		"selector": selector, "index": index,
	}, 60*time.Second)
	if err != nil {
		return nil, err
	}
	return decodeBase64Field(data, "base64")
}

// ElementScrollIntoView scrolls one matched element into the viewport.
func (f *Facade) ElementScrollIntoView(selector string, index int) error {
	_, err := f.send.Send("element_scroll_into_view", map[string]any{
		"selector": selector, "index": index,
	}, 10*time.Second)
	return err
}

// GetCookies returns every cookie the agent's page currently holds.
func (f *Facade) GetCookies() ([]map[string]any, error) {
	data, err := f.send.Send("get_cookies", nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	raw, _ := data["cookies"].([]any)
	cookies := make([]map[string]any, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]any); ok {
			cookies = append(cookies, m)
		}
	}
	return cookies, nil
}

// AddCookie adds one cookie to the agent's page.
func (f *Facade) AddCookie(cookie map[string]any) error {
	_, err := f.send.Send("add_cookie", map[string]any{"cookie": cookie}, 10*time.Second)
	return err
}

// ClearCookies removes every cookie from the agent's page.
func (f *Facade) ClearCookies() error {
	_, err := f.send.Send("clear_cookies", nil, 10*time.Second)
	return err
}

func stringField(data map[string]any, key string) string {
	if s, ok := data[key].(string); ok {
		return s
	}
	return ""
}

func boolField(data map[string]any, key string) bool {
	if b, ok := data[key].(bool); ok {
		return b
	}
	return false
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func decodeBase64Field(data map[string]any, key string) ([]byte, error) {
	encoded := stringField(data, key)
	if encoded == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("pagefacade: decode %s: %w", key, err)
	}
	return decoded, nil
}
