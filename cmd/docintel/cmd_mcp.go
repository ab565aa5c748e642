package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docintel/internal/trigger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the process_document tool over stdio",
	RunE:  runMCP,
}

func runMCP(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server := trigger.NewMCPServer(a.domain.Pipeline, a.infra.Storage.Container(), version)
	a.infra.Logger.Info("serving mcp over stdio")
	return server.Run(ctx)
}
