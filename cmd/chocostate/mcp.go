package main

import (
	"context"
	"os"
	"os/signal"

	mcptools "github.com/felixgeelhaar/chocostate/internal/mcp"
	"github.com/felixgeelhaar/mcp-go"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agent integration",
	Long: `Start a Model Context Protocol (MCP) server exposing reconciliation to
AI agents.

Available tools:
  - chocostate_plan     Show the choco commands a run would execute
  - chocostate_apply    Reconcile packages (requires confirm=true)
  - chocostate_report   Read the last saved report
  - chocostate_status   Version and run state

Examples:
  chocostate mcp                         # Start stdio MCP server
  chocostate mcp --http :8080            # Start HTTP MCP server
  chocostate mcp -f packages.yaml        # Default task file for the tools`,
	RunE: runMCP,
}

var (
	mcpHTTP       string
	mcpTaskFile   string
	mcpReportFile string
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpHTTP, "http", "", "Start HTTP server on address (e.g., :8080)")
	mcpCmd.Flags().StringVarP(&mcpTaskFile, "task-file", "f", "", "Default task file for plan and apply")
	mcpCmd.Flags().StringVar(&mcpReportFile, "report-file", "", "Save apply reports to this file")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := loadSettings()
	if err != nil {
		return err
	}
	// stdout carries the protocol, so logs always go to stderr.
	logger, err := newLogger(s, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	svc, closeService, err := newService(ctx, s, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "chocostate",
		Version: version,
	})

	mcptools.RegisterAll(srv, svc, mcptools.Defaults{
		TaskFile:   mcpTaskFile,
		ReportFile: mcpReportFile,
	}, mcptools.VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: date,
	})

	if mcpHTTP != "" {
		return mcp.ServeHTTP(ctx, srv, mcpHTTP)
	}
	return mcp.ServeStdio(ctx, srv)
}
