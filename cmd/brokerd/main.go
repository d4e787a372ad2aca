// Package main provides the CLI entry point for brokerd, a capability
// broker that exposes a fixed registry of tools over JSON-RPC 2.0 to
// token-scoped clients and, optionally, fans execution out to a single
// connected remote agent over a websocket bridge.
//
// # Basic Usage
//
// Start the server:
//
//	brokerd serve --config brokerd.yaml
//
// List the tools a token is authorized to call:
//
//	brokerd tools list --config brokerd.yaml --token <api-key>
//
// # Environment Variables
//
// Configuration can also be provided via environment variables, which
// always win over the config file:
//
//   - BROKERD_HTTP_ADDR: address the JSON-RPC/metrics server listens on
//   - BROKERD_AGENT_ADDR: address the agent bridge websocket listens on
//   - BROKERD_AGENT_SECRET: shared secret the remote agent authenticates with
//   - BROKERD_AGENT_ALLOW_EMPTY_SECRET: must be "true" to let the bridge accept
//     handshakes while BROKERD_AGENT_SECRET is unset; otherwise an empty secret
//     disables the bridge
//   - BROKERD_TOKENS: JSON (or base64-encoded JSON) array of token policies
//   - BROKERD_MAILBOXES: JSON (or base64-encoded JSON) mailbox directory
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time metadata, set via:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "brokerd",
		Short: "brokerd - capability-scoped JSON-RPC tool broker",
		Long: `brokerd exposes a fixed registry of tools over JSON-RPC 2.0, authorizing
every call against a bearer token's glob-pattern tool policy before
dispatch, and forwarding browser-automation calls to a single connected
remote agent over a websocket bridge.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildToolsCmd(),
	)

	return rootCmd
}
