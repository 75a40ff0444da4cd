package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/spf13/cobra"

	"github.com/ironsheep/block-mosaic/internal/mosaic"
)

var convertCmd = &cobra.Command{
	Use:   "convert INPUT OUTPUT",
	Short: "Convert one image into a mosaic PNG",
	Long: `Converts INPUT into a block mosaic and writes it to OUTPUT as PNG. The
bill of materials (blocks used, most frequent first) is printed as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]

		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		width, _ := cmd.Flags().GetInt("width")
		if width == 0 {
			width = a.cfg.DefaultWidth
		}
		grid, _ := cmd.Flags().GetBool("grid")
		gridEvery, _ := cmd.Flags().GetInt("grid-every")
		coords, _ := cmd.Flags().GetBool("show-coordinates")
		gridColor, _ := cmd.Flags().GetString("grid-color")

		data, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		res, err := a.conv.Convert(cmd.Context(), data, width, a.cfg.Source())
		if err != nil {
			return err
		}

		var img image.Image = res.Image
		if grid {
			img, err = mosaic.GridOverlay(res.Image, res.TileSize, gridEvery, coords, gridColor)
			if err != nil {
				return err
			}
		}
		if err := imgio.Save(out, img, imgio.PNGEncoder()); err != nil {
			return fmt.Errorf("failed to write mosaic: %w", err)
		}

		a.logger.Info("mosaic written", "output", out, "columns", res.Columns, "rows", res.Rows,
			"elapsed", res.Elapsed)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"output":     out,
			"columns":    res.Columns,
			"rows":       res.Rows,
			"tile_size":  res.TileSize,
			"blocks":     res.Blocks,
			"mean_error": res.MeanError,
		})
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().IntP("width", "w", 0, "Mosaic width in blocks (default DEFAULT_IMAGE_WIDTH)")
	convertCmd.Flags().Bool("grid", false, "Draw block boundaries as a building guide")
	convertCmd.Flags().Int("grid-every", 1, "Draw a boundary every N blocks")
	convertCmd.Flags().Bool("show-coordinates", false, "Label grid intersections with block coordinates")
	convertCmd.Flags().String("grid-color", mosaic.DefaultGridColor, "Grid line color as #RRGGBB or #RRGGBBAA")
}
