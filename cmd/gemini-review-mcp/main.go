// Command gemini-review-mcp serves code-review tools over MCP stdio,
// delegating the analysis itself to the gemini CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iamrichardD/claude-gemini-mcp-server/internal/config"
	"github.com/iamrichardD/claude-gemini-mcp-server/internal/server"
)

var (
	// Global flags
	configPath string
	rootDir    string
	geminiBin  string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd starts the stdio server. Stdout belongs to the protocol, so
// the logger is forced onto stderr.
var rootCmd = &cobra.Command{
	Use:   "gemini-review-mcp",
	Short: "MCP server exposing gemini-backed code review tools",
	Long: `gemini-review-mcp is an MCP server that lets an assistant request a
second-opinion code review from the gemini CLI.

It exposes five tools over stdio: review, analyze, suggest,
validate_architecture and history. Every file path is confined to a
sandbox root, and the gemini CLI runs as a bounded subprocess with a
minimal environment.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		zcfg.ErrorOutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: serve,
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Sandbox root directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&geminiBin, "gemini-bin", "", "gemini CLI binary (default: gemini on PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(versionCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Flags win over file and environment.
	if rootDir != "" {
		cfg.Sandbox.RootDir = rootDir
	}
	if geminiBin != "" {
		cfg.Gemini.Binary = geminiBin
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
