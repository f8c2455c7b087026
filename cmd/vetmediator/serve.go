package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldr123/VetMediatorMCP/internal/config"
	"github.com/ldr123/VetMediatorMCP/internal/mcpserver"
)

type serveFlags struct {
	logLevel string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}

	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, or error")

	return cmd
}

func runServe(f *serveFlags) error {
	// stdout carries the MCP protocol; all logging goes to stderr.
	logger := newLogger(os.Stderr, f.logLevel)
	resolver := config.NewResolver(logger)

	srv := mcpserver.New(resolver, logger)
	logger.Info("serving MCP over stdio", "server", mcpserver.Name, "version", mcpserver.Version)

	if err := srv.ServeStdio(); err != nil {
		return exitError(2, "MCP server failed: %v", err)
	}
	return nil
}

func newLogger(w *os.File, level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
