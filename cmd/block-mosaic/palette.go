package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Load the block palette and print its summary as JSON",
	Long: `Loads the palette descriptor and every texture it names, then prints the
tile size, color policy and each block with its representative color. Use it
to check a descriptor before deploying it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		p, err := a.palettes.Get(a.cfg.Source())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p.Summarize())
	},
}

func init() {
	rootCmd.AddCommand(paletteCmd)
}
