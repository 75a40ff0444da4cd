package main

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ironsheep/block-mosaic/internal/config"
	"github.com/ironsheep/block-mosaic/internal/convert"
	"github.com/ironsheep/block-mosaic/internal/logging"
	"github.com/ironsheep/block-mosaic/internal/metrics"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// app is the set of components every subcommand shares.
type app struct {
	cfg      *config.Config
	logger   hclog.Logger
	recorder *metrics.Recorder
	palettes *palette.Cache
	conv     *convert.Converter
}

// flagEnv maps persistent flags to the variables they override.
var flagEnv = map[string]string{
	"blocks-dir":  "BLOCKS_DIR",
	"blocks-json": "BLOCKS_JSON",
	"log-level":   "MOSAIC_LOG_LEVEL",
}

// newApp loads the configuration and wires the conversion core.
func newApp(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env-file")

	overrides := make(map[string]string, len(flagEnv))
	for flag, key := range flagEnv {
		if cmd.Flags().Changed(flag) {
			overrides[key], _ = cmd.Flags().GetString(flag)
		}
	}

	cfg, err := config.Load(envFile, overrides)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
	})
	recorder := metrics.New()

	palettes := palette.NewCache(cfg.PaletteOptions(), logger,
		palette.WithLoadObserver(func(_ palette.Source, _ time.Duration, err error) {
			recorder.PaletteLoad(err)
		}),
	)

	convCfg, err := cfg.Converter()
	if err != nil {
		return nil, err
	}
	conv, err := convert.New(convCfg, palettes, logger, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create converter: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		palettes: palettes,
		conv:     conv,
	}, nil
}

// warm loads the palette up front so a broken descriptor shows at startup.
func (a *app) warm() error {
	_, err := a.palettes.Get(a.cfg.Source())
	return err
}
