// Package broker implements the tool registry, token-scoped authorization,
// and uniform result shape that the RPC endpoint dispatches against.
package broker

import (
	"fmt"
	"sort"
	"strings"
)

// ResultRecord is the uniform outcome of any tool invocation. A handler
// always returns one, even on failure; failures never cross into the
// JSON-RPC transport layer as a protocol-level error.
type ResultRecord struct {
	Success       bool
	Stdout        string
	Stderr        string
	ReturnCode    int
	ExecutionTime string
	Metadata      map[string]any
	ErrorKind     string
	ErrorMessage  string
}

// metadataSkipKeys are metadata entries never rendered into the summary
// text, because they duplicate information already shown elsewhere or are
// internal bookkeeping not meant for the end user.
var metadataSkipKeys = map[string]bool{
	"version_info": true,
}

// Render produces the deterministic human-readable summary described by
// the tools/call response envelope: metadata lines (skipping the keys in
// metadataSkipKeys), execution time, return code, an optional error line,
// and optional stdout/stderr blocks.
func (r ResultRecord) Render() string {
	var lines []string

	for _, key := range sortedMetadataKeys(r.Metadata) {
		value := r.Metadata[key]
		if isEmptyValue(value) || metadataSkipKeys[key] {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", titleCase(key), value))
	}

	lines = append(lines, fmt.Sprintf("Execution Time: %s", r.ExecutionTime))
	lines = append(lines, fmt.Sprintf("Return Code: %d", r.ReturnCode))

	if !r.Success {
		lines = append(lines, fmt.Sprintf("Error: [%s] %s", r.ErrorKind, r.ErrorMessage))
	}
	if r.Stdout != "" {
		lines = append(lines, fmt.Sprintf("Standard Output:\n%s", r.Stdout))
	}
	if r.Stderr != "" {
		lines = append(lines, fmt.Sprintf("Standard Error:\n%s", r.Stderr))
	}

	return strings.Join(lines, "\n")
}

// Validate enforces the invariant that a failed result always explains
// itself: at least one of errorKind, errorMessage, or stderr is non-empty.
func (r ResultRecord) Validate() error {
	if r.Success {
		return nil
	}
	if r.ErrorKind == "" && r.ErrorMessage == "" && r.Stderr == "" {
		return fmt.Errorf("broker: failed ResultRecord has no errorKind, errorMessage, or stderr")
	}
	return nil
}

func sortedMetadataKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isEmptyValue mirrors the original's `if value:` Python truthiness check
// (schemas.py's to_text_output): nil, "", false, zero numbers, and empty
// maps/slices are all falsy and suppressed from the rendered summary.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case int:
		return val == 0
	case int32:
		return val == 0
	case int64:
		return val == 0
	case uint:
		return val == 0
	case uint64:
		return val == 0
	case float64:
		return val == 0
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}

// titleCase renders a snake_case metadata key as the spaced, capitalized
// label used in the rendered summary ("exit_reason" -> "Exit Reason").
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
