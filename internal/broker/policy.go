package broker

import (
	"path"
	"strings"
)

// TokenPolicy is the per-token access-control record: which tool name
// patterns a bearer token may invoke, which are excluded regardless of the
// allow list, and which mailbox (if any) the token is bound to. Loaded
// once at startup and never mutated afterward.
type TokenPolicy struct {
	TokenID          string
	AllowedPatterns  []string
	ExcludedPatterns []string
	MailboxID        string
}

// RequestScope is the per-request bundle threaded into handlers that opt
// in to it: the resolved TokenPolicy, the token's id, and any mailbox
// credentials already resolved for this request.
type RequestScope struct {
	Policy             TokenPolicy
	TokenID            string
	MailboxCredentials MailboxCredentials
}

// ToolSummary is the public, filterable shape of a registered tool:
// exactly the fields returned by tools/list.
type ToolSummary struct {
	Name        string
	Description string
	InputSchema any
}

// Authorizer parses bearer tokens, resolves their TokenPolicy, and applies
// glob-pattern permission checks with exclusion evaluated before inclusion.
type Authorizer struct {
	tokens    map[string]TokenPolicy
	mailboxes *MailboxDirectory
	devMode   bool
}

// NewAuthorizer builds an Authorizer from the token table loaded at
// startup. An empty table puts the server into development mode: every
// request is granted allowedPatterns=["*"] with no mailbox binding,
// matching the original's "no API_KEYS configured" behavior.
func NewAuthorizer(policies []TokenPolicy, mailboxes *MailboxDirectory) *Authorizer {
	tokens := make(map[string]TokenPolicy, len(policies))
	for _, p := range policies {
		tokens[p.TokenID] = p
	}
	return &Authorizer{
		tokens:    tokens,
		mailboxes: mailboxes,
		devMode:   len(tokens) == 0,
	}
}

// ParseAndResolve validates the raw Authorization header value (including
// the "Bearer " prefix) and returns the RequestScope for that token.
func (a *Authorizer) ParseAndResolve(authHeader string) (RequestScope, error) {
	if a.devMode {
		return RequestScope{
			Policy: TokenPolicy{AllowedPatterns: []string{"*"}},
		}, nil
	}

	if authHeader == "" {
		return RequestScope{}, ErrMissingAuth
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return RequestScope{}, ErrMissingAuth
	}

	token := parts[1]
	policy, ok := a.tokens[token]
	if !ok {
		return RequestScope{}, ErrInvalidToken
	}

	scope := RequestScope{Policy: policy, TokenID: policy.TokenID}
	if creds, found := a.mailboxes.Lookup(policy.MailboxID); found {
		scope.MailboxCredentials = creds
	}
	return scope, nil
}

// CanInvoke reports whether policy permits invoking toolName. Exclusion is
// evaluated before inclusion: a tool matching any excluded pattern is
// always denied, regardless of the allow list.
func (a *Authorizer) CanInvoke(policy TokenPolicy, toolName string) bool {
	for _, pattern := range policy.ExcludedPatterns {
		if matchPattern(pattern, toolName) {
			return false
		}
	}
	for _, pattern := range policy.AllowedPatterns {
		if pattern == "*" || matchPattern(pattern, toolName) {
			return true
		}
	}
	return false
}

// FilterDefinitions returns the sublist of defs permitted by policy,
// preserving the input order.
func (a *Authorizer) FilterDefinitions(policy TokenPolicy, defs []ToolSummary) []ToolSummary {
	filtered := make([]ToolSummary, 0, len(defs))
	for _, d := range defs {
		if a.CanInvoke(policy, d.Name) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// ResolveMailbox returns the mailbox credentials a request scope was
// resolved with, or ErrMailboxNotBound if the tool requires one but the
// policy has no (or an unknown) mailbox id.
func (a *Authorizer) ResolveMailbox(scope RequestScope) (MailboxCredentials, error) {
	if scope.Policy.MailboxID == "" {
		return nil, ErrMailboxNotBound
	}
	creds, ok := a.mailboxes.Lookup(scope.Policy.MailboxID)
	if !ok {
		return nil, ErrMailboxNotBound
	}
	return creds, nil
}

// matchPattern implements shell-glob matching (*, ?, [set]) against the
// full tool name, case-sensitive. Tool names never contain '/', so the
// path separator restriction path.Match otherwise imposes never triggers.
func matchPattern(pattern, name string) bool {
	matched, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
