package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/brokerd/internal/broker"
	"github.com/haasonsaas/brokerd/internal/config"
	"github.com/haasonsaas/brokerd/internal/logging"
	"github.com/haasonsaas/brokerd/internal/metrics"
	"github.com/haasonsaas/brokerd/internal/rpc"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the brokerd JSON-RPC server",
		Long: `Start the brokerd JSON-RPC server.

The server will:
1. Load configuration from the specified file (or environment variables alone)
2. Build the tool registry and seal it against further registration
3. Start the HTTP server serving /mcp (JSON-RPC) and /metrics (Prometheus)
4. Start the agent bridge websocket listener, if enabled

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config discovery (env vars only)
  brokerd serve

  # Start with an explicit config file
  brokerd serve --config /etc/brokerd/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stdout, logging.ParseFormat(cfg.LogFormat), logging.ParseLevel(cfg.LogLevel))
	logger.Info("starting brokerd",
		"version", version,
		"commit", commit,
		"config", configPath,
		"http_addr", cfg.HTTPAddr,
		"agent_bridge_enabled", cfg.AgentBridgeEnabled,
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cleaned, err := config.CleanWorkDir(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to clean work directory: %w", err)
	}
	logger.Info("work directory cleaned", "work_dir", cfg.WorkDir, "entries_removed", cleaned)

	registry, hub, err := buildRegistry(&cfg, logging.Component(logger, "agenthub"), m)
	if err != nil {
		return err
	}
	logger.Info("tool registry sealed", "tool_count", registry.Count())

	authorizer := broker.NewAuthorizer(cfg.TokenPolicies(), cfg.MailboxDirectory())
	if len(cfg.Tokens) == 0 {
		logger.Warn("no tokens configured: running in development mode, every request may call every tool")
	}
	endpoint := rpc.New(registry, authorizer, m, logging.Component(logger, "rpc"), cfg.WorkDir, cfg.ExecTimeout, len(cfg.Tokens) > 0)

	mux := http.NewServeMux()
	mux.Handle("/mcp", endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// WriteTimeout must cover the longest a tools/call handler may run, not
	// just the RPC envelope itself: execute_shell's process-group timeout
	// is caller-configurable up to cfg.ExecTimeout, so a fixed 30s here
	// would tear down the response connection out from under a legitimate
	// long-running call before the handler returns.
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ExecTimeout + 30*time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	if hub != nil {
		// hub.Start returns as soon as its listener is confirmed up (it
		// does not block for the bridge's lifetime the way
		// httpServer.ListenAndServe does), so only a startup failure goes
		// on errCh here; a nil return means "started fine," not "done,"
		// and must not be treated like the http goroutine's completion.
		if err := hub.Start(cfg.AgentAddr); err != nil {
			errCh <- fmt.Errorf("agent bridge: %w", err)
		}
		logger.Info("agent bridge listening", "agent_addr", cfg.AgentAddr)
	}

	logger.Info("brokerd started", "http_addr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	if hub != nil {
		if err := hub.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("agent bridge shutdown failed: %w", err)
		}
	}

	logger.Info("brokerd stopped gracefully")
	return nil
}
