package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/config"
	"github.com/haasonsaas/brokerd/internal/logging"
	"github.com/haasonsaas/brokerd/internal/metrics"
)

func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool registry",
	}
	cmd.AddCommand(buildToolsListCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var (
		configPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools a bearer token is authorized to call",
		Long: `Builds the same tool registry the server would run, then reports which
tools the given token may invoke (or every tool, with no token flag and
no tokens configured, since that is dev mode).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(configPath, token)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Bearer token to evaluate (omit for dev mode / all tools)")

	return cmd
}

func runToolsList(configPath, token string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, _, err := buildRegistry(&cfg, logging.Default(), metrics.NewNoop())
	if err != nil {
		return err
	}

	authorizer := broker.NewAuthorizer(cfg.TokenPolicies(), cfg.MailboxDirectory())

	authHeader := ""
	if token != "" {
		authHeader = "Bearer " + token
	}
	scope, err := authorizer.ParseAndResolve(authHeader)
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}

	allowed := authorizer.FilterDefinitions(scope.Policy, registry.ListDefinitions())
	if len(allowed) == 0 {
		fmt.Println("no tools authorized for this token")
		return nil
	}
	for _, def := range allowed {
		fmt.Printf("%-24s %s\n", def.Name, def.Description)
	}
	return nil
}
