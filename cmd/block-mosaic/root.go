package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "block-mosaic",
	Short: "Block mosaic rebuilds images out of block textures",
	Long: `block-mosaic turns a picture into a mosaic of textured blocks: every area of
the source is replaced by the palette block whose color is closest to it.

It runs as an HTTP service, as an MCP server over stdio, or one-shot from the
command line. Settings come from the environment and an optional .env file;
flags win over both.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional KEY=VALUE file read under the process environment")
	rootCmd.PersistentFlags().String("blocks-dir", "", "Directory holding the block textures (BLOCKS_DIR)")
	rootCmd.PersistentFlags().String("blocks-json", "", "Palette descriptor, relative to the blocks directory unless absolute (BLOCKS_JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (MOSAIC_LOG_LEVEL)")
}
