// Package config loads brokerd's configuration: an optional YAML base file
// layered with environment variable overrides, matching the teacher's
// config-loading idiom (gopkg.in/yaml.v3 plus direct os.Getenv reads).
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/brokerd/internal/broker"
)

// TokenEntry is the shape of one element of the BROKERD_TOKENS JSON array.
type TokenEntry struct {
	APIKey       string   `json:"api_key" yaml:"api_key"`
	Tools        []string `json:"tools" yaml:"tools"`
	ExcludeTools []string `json:"exclude_tools" yaml:"exclude_tools"`
	Mailbox      string   `json:"mailbox" yaml:"mailbox"`
}

// Config is the fully resolved, immutable configuration for one process
// lifetime. Construct it once at startup via Load; never mutate it after.
type Config struct {
	HTTPAddr           string `yaml:"http_addr"`
	AgentAddr          string `yaml:"agent_addr"`
	AgentSecret        string `yaml:"agent_secret"`
	AgentBridgeEnabled bool   `yaml:"agent_bridge_enabled"`
	// AgentAllowEmptySecret must be explicitly set for the bridge to
	// accept handshakes while AgentSecret is empty. Per spec.md §4.4, an
	// empty secret disables the bridge unless explicitly configured
	// otherwise; this field is that explicit opt-in, defaulting to false.
	AgentAllowEmptySecret bool `yaml:"agent_allow_empty_secret"`

	WorkDir     string                                `yaml:"work_dir"`
	ExecTimeout time.Duration                         `yaml:"exec_timeout"`
	LogFormat   string                                `yaml:"log_format"`
	LogLevel    string                                `yaml:"log_level"`
	Tokens      []TokenEntry                          `yaml:"tokens"`
	Mailboxes   map[string]broker.MailboxCredentials  `yaml:"mailboxes"`
}

func defaults() Config {
	return Config{
		HTTPAddr:           ":8000",
		AgentAddr:          ":8001",
		AgentBridgeEnabled: true,
		WorkDir:            "./brokerd_workspace",
		ExecTimeout:        300 * time.Second,
		LogFormat:          "json",
		LogLevel:           "info",
	}
}

// Load builds a Config from an optional YAML file at path (skipped if
// empty or missing) layered with environment variable overrides. Env vars
// always win over the file, matching the teacher's layering order.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	tokens, err := loadTokenTable()
	if err != nil {
		return Config{}, err
	}
	if len(tokens) > 0 {
		cfg.Tokens = tokens
	}

	mailboxes, err := loadMailboxDirectory()
	if err != nil {
		return Config{}, err
	}
	if len(mailboxes) > 0 {
		cfg.Mailboxes = mailboxes
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BROKERD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BROKERD_AGENT_ADDR"); v != "" {
		cfg.AgentAddr = v
	}
	if v := os.Getenv("BROKERD_AGENT_SECRET"); v != "" {
		cfg.AgentSecret = v
	}
	if v := os.Getenv("BROKERD_AGENT_BRIDGE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.AgentBridgeEnabled = enabled
		}
	}
	if v := os.Getenv("BROKERD_AGENT_ALLOW_EMPTY_SECRET"); v != "" {
		if allowed, err := strconv.ParseBool(v); err == nil {
			cfg.AgentAllowEmptySecret = allowed
		}
	}
	if v := os.Getenv("BROKERD_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("BROKERD_EXEC_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.ExecTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("BROKERD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("BROKERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// loadTokenTable reads BROKERD_TOKENS, trying plain JSON first and falling
// back to base64-decoded JSON, matching APIKeyManager._load_json_env in
// the distilled system's original.
func loadTokenTable() ([]TokenEntry, error) {
	raw := os.Getenv("BROKERD_TOKENS")
	if raw == "" {
		return nil, nil
	}
	return decodeJSONEnv[[]TokenEntry](raw)
}

// loadMailboxDirectory reads BROKERD_MAILBOXES the same base64-or-plain way.
func loadMailboxDirectory() (map[string]broker.MailboxCredentials, error) {
	raw := os.Getenv("BROKERD_MAILBOXES")
	if raw == "" {
		return nil, nil
	}
	return decodeJSONEnv[map[string]broker.MailboxCredentials](raw)
}

func decodeJSONEnv[T any](raw string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: value is neither valid JSON nor base64-encoded JSON: %w", err)
	}
	if err := json.Unmarshal(decoded, &value); err != nil {
		var zero T
		return zero, fmt.Errorf("config: decode base64 JSON: %w", err)
	}
	return value, nil
}

// CleanWorkDir creates workDir if absent, then removes every entry already
// inside it, matching original_source/config.py's cleanup_work_directory():
// stale scratch directories from a prior process must never leak into a
// new one. Returns the number of entries removed.
func CleanWorkDir(workDir string) (int, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return 0, fmt.Errorf("config: create work directory: %w", err)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		return 0, fmt.Errorf("config: read work directory: %w", err)
	}

	cleaned := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(workDir, entry.Name())); err != nil {
			return cleaned, fmt.Errorf("config: remove %s: %w", entry.Name(), err)
		}
		cleaned++
	}
	return cleaned, nil
}

// TokenPolicies converts the loaded token table into broker.TokenPolicy
// values, keyed by api_key as TokenPolicy.TokenID.
func (c Config) TokenPolicies() []broker.TokenPolicy {
	policies := make([]broker.TokenPolicy, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		policies = append(policies, broker.TokenPolicy{
			TokenID:          t.APIKey,
			AllowedPatterns:  t.Tools,
			ExcludedPatterns: t.ExcludeTools,
			MailboxID:        t.Mailbox,
		})
	}
	return policies
}

// MailboxDirectory converts the loaded mailbox map into a
// *broker.MailboxDirectory.
func (c Config) MailboxDirectory() *broker.MailboxDirectory {
	return broker.NewMailboxDirectory(c.Mailboxes)
}
