package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/block-mosaic/internal/server"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server over stdio",
	Long: `Starts block-mosaic as an MCP server speaking JSON-RPC 2.0 over
stdin/stdout, so AI agents can convert images and inspect the palette as
tools. Logs go to stderr to keep stdout clean for the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		logger := a.logger.Named("mcp")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Options{
			Converter:    a.conv,
			Palettes:     a.palettes,
			Source:       a.cfg.Source(),
			DefaultWidth: a.cfg.DefaultWidth,
			Version:      Version,
			Logger:       a.logger,
		})

		logger.Info("starting MCP server", "version", Version, "descriptor", a.cfg.Source().Descriptor)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP server execution failed", "error", err)
			return err
		}
		logger.Info("MCP server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
