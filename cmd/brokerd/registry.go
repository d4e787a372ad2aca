package main

import (
	"fmt"
	"log/slog"

	"github.com/haasonsaas/brokerd/internal/agenthub"
	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/config"
	"github.com/haasonsaas/brokerd/internal/execshell"
	"github.com/haasonsaas/brokerd/internal/metrics"
	"github.com/haasonsaas/brokerd/internal/pagefacade"
	"github.com/haasonsaas/brokerd/internal/schema"
	"github.com/haasonsaas/brokerd/internal/webtools"
)

// buildRegistry assembles the tool registry both `serve` and `tools list`
// run: execute_shell plus, when the agent bridge is enabled, the web_*
// family bound to a CallSite on hub. hub is nil when the bridge is
// disabled, in which case no AgentHub is constructed and web_* tools are
// left unregistered.
func buildRegistry(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*broker.ToolRegistry, *agenthub.AgentHub, error) {
	registry := broker.NewToolRegistry()
	registry.SetValidator(schema.NewValidator())

	var hub *agenthub.AgentHub
	if cfg.AgentBridgeEnabled {
		hub = agenthub.New(cfg.AgentSecret, cfg.AgentAllowEmptySecret, logger, m)
	}

	providers := []func(*broker.ToolRegistry) error{
		func(r *broker.ToolRegistry) error {
			return execshell.Register(r, cfg.WorkDir, cfg.ExecTimeout)
		},
	}
	if hub != nil {
		facade := pagefacade.New(agenthub.NewCallSite(hub))
		providers = append(providers, func(r *broker.ToolRegistry) error {
			return webtools.Register(r, facade)
		})
	}

	if err := broker.Bootstrap(registry, providers...); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap tool registry: %w", err)
	}
	return registry, hub, nil
}
