package config

import (
	"encoding/base64"
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("BROKERD_HTTP_ADDR")
	os.Unsetenv("BROKERD_TOKENS")
	os.Unsetenv("BROKERD_MAILBOXES")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected default http addr, got %s", cfg.HTTPAddr)
	}
	if !cfg.AgentBridgeEnabled {
		t.Fatal("expected agent bridge enabled by default")
	}
	if cfg.AgentAllowEmptySecret {
		t.Fatal("expected AgentAllowEmptySecret to default false, so an empty secret refuses handshakes")
	}
	if len(cfg.Tokens) != 0 {
		t.Fatalf("expected no tokens by default, got %v", cfg.Tokens)
	}
}

func TestAgentAllowEmptySecretEnvOverride(t *testing.T) {
	t.Setenv("BROKERD_AGENT_ALLOW_EMPTY_SECRET", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.AgentAllowEmptySecret {
		t.Fatal("expected env override to enable AgentAllowEmptySecret")
	}
}

func TestLoadTokensFromPlainJSONEnv(t *testing.T) {
	t.Setenv("BROKERD_TOKENS", `[{"api_key":"T1","tools":["*"]}]`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens[0].APIKey != "T1" {
		t.Fatalf("expected one token T1, got %+v", cfg.Tokens)
	}
}

func TestLoadTokensFromBase64EncodedEnv(t *testing.T) {
	raw := `[{"api_key":"T2","tools":["web_*"],"exclude_tools":["web_clear_cookies"]}]`
	t.Setenv("BROKERD_TOKENS", base64.StdEncoding.EncodeToString([]byte(raw)))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens[0].APIKey != "T2" {
		t.Fatalf("expected one token T2, got %+v", cfg.Tokens)
	}
	if len(cfg.Tokens[0].ExcludeTools) != 1 {
		t.Fatalf("expected one excluded pattern, got %v", cfg.Tokens[0].ExcludeTools)
	}
}

func TestEnvOverridesBeatBuiltInDefaults(t *testing.T) {
	t.Setenv("BROKERD_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected env override, got %s", cfg.HTTPAddr)
	}
}

func TestTokenPoliciesConversion(t *testing.T) {
	cfg := Config{Tokens: []TokenEntry{
		{APIKey: "T1", Tools: []string{"*"}, ExcludeTools: []string{"web_*"}, Mailbox: "alice"},
	}}
	policies := cfg.TokenPolicies()
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}
	p := policies[0]
	if p.TokenID != "T1" || p.MailboxID != "alice" {
		t.Fatalf("unexpected policy: %+v", p)
	}
}
