package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/langflow-mcp/langflow-mcp/internal/app"
	"github.com/langflow-mcp/langflow-mcp/internal/config"
	"github.com/langflow-mcp/langflow-mcp/internal/logger"
	"github.com/langflow-mcp/langflow-mcp/internal/version"
)

type rootFlags struct {
	envFile     string
	transport   string
	httpAddr    string
	metricsAddr string
	logLevel    string
	logFormat   string
}

var flags rootFlags

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "langflow-mcp",
		Short: "MCP server for the Langflow API",
		Long: `langflow-mcp exposes a Langflow instance to MCP clients as tools for managing
flows and projects, running flows and inspecting their messages.

Configuration is read from the environment and an optional .env file.
Flags override the corresponding environment variables.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runServer,
	}

	f := cmd.Flags()
	f.StringVar(&flags.envFile, "env-file", "", "path to a .env file (default .env when present)")
	f.StringVar(&flags.transport, "transport", "", "MCP transport: stdio or http (env MCP_TRANSPORT)")
	f.StringVar(&flags.httpAddr, "http-addr", "", "listen address for the http transport (env MCP_HTTP_ADDR)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (env METRICS_ADDR)")
	f.StringVar(&flags.logLevel, "log-level", "", "log level (env LOG_LEVEL)")
	f.StringVar(&flags.logFormat, "log-format", "", "log format: console or json (env LOG_FORMAT)")
	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	// stdout belongs to the stdio transport, logs always go to stderr
	log, err := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	a, err := app.New(app.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("transport", &cfg.Transport, flags.transport)
	set("http-addr", &cfg.HTTPAddr, flags.httpAddr)
	set("metrics-addr", &cfg.MetricsAddr, flags.metricsAddr)
	set("log-level", &cfg.LogLevel, flags.logLevel)
	set("log-format", &cfg.LogFormat, flags.logFormat)
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
