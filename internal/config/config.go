// Package config loads service settings from the environment.
//
// Settings come from process environment variables and, optionally, a .env
// file of KEY=VALUE lines. Variables already set in the process win over the
// file. Values are decoded into Config with mapstructure using weak typing,
// so "8080" fills an int and "a,b" fills a []string.
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	"github.com/ironsheep/block-mosaic/internal/convert"
	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/match"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full service configuration.
type Config struct {
	Env string `mapstructure:"APP_ENV"`

	// BlocksDir holds the textures. BlocksJSON is resolved against it unless
	// absolute.
	BlocksDir  string `mapstructure:"BLOCKS_DIR"`
	BlocksJSON string `mapstructure:"BLOCKS_JSON"`

	Host           string   `mapstructure:"API_HOST"`
	Port           int      `mapstructure:"API_PORT"`
	AllowedOrigins []string `mapstructure:"API_ALLOWED_ORIGINS"`

	MaxFileSizeMB int `mapstructure:"MAX_FILE_SIZE_MB"`
	MinWidth      int `mapstructure:"MIN_IMAGE_WIDTH"`
	MaxWidth      int `mapstructure:"MAX_IMAGE_WIDTH"`
	DefaultWidth  int `mapstructure:"DEFAULT_IMAGE_WIDTH"`

	ConversionTimeoutSeconds int `mapstructure:"CONVERSION_TIMEOUT_SECONDS"`
	MaxPixels                int `mapstructure:"MAX_IMAGE_PIXELS"`
	MaxOutputPixels          int `mapstructure:"MAX_OUTPUT_PIXELS"`

	Metric     string `mapstructure:"COLOR_METRIC"`
	Filter     string `mapstructure:"SAMPLE_FILTER"`
	Policy     string `mapstructure:"COLOR_POLICY"`
	Background string `mapstructure:"BACKGROUND_COLOR"`

	RedisAddr   string        `mapstructure:"REDIS_ADDR"`
	RedisTTL    time.Duration `mapstructure:"REDIS_TTL"`
	RedisPrefix string        `mapstructure:"REDIS_PREFIX"`

	LogLevel string `mapstructure:"MOSAIC_LOG_LEVEL"`
	LogJSON  bool   `mapstructure:"MOSAIC_LOG_JSON"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Env:                      EnvDevelopment,
		BlocksDir:                ".",
		BlocksJSON:               "blocks.json",
		Host:                     "0.0.0.0",
		Port:                     5000,
		AllowedOrigins:           []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		MaxFileSizeMB:            10,
		MinWidth:                 convert.DefaultMinWidth,
		MaxWidth:                 convert.DefaultMaxWidth,
		DefaultWidth:             128,
		ConversionTimeoutSeconds: int(convert.DefaultTimeout / time.Second),
		MaxPixels:                imaging.DefaultMaxPixels,
		MaxOutputPixels:          convert.DefaultMaxOutputPixels,
		Metric:                   string(match.MetricRGB),
		Filter:                   string(imaging.FilterBox),
		Policy:                   string(palette.PolicyAverage),
		Background:               "#FFFFFF",
		RedisTTL:                 time.Hour,
		RedisPrefix:              "mosaic:",
		LogLevel:                 "info",
	}
}

// Load reads the process environment and, if envFile is not empty and
// exists, the .env file at that path, then validates the result.
//
// overrides take precedence over both sources; the command line uses them
// for its flags. Empty override values are ignored.
func Load(envFile string, overrides map[string]string) (*Config, error) {
	vars, err := environment(envFile)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		if v != "" {
			vars[k] = v
		}
	}
	return FromMap(vars)
}

// FromMap builds a validated Config from a variable map. Keys not present
// keep their defaults; empty values are treated as not present.
func FromMap(vars map[string]string) (*Config, error) {
	input := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if v = strings.TrimSpace(v); v != "" {
			input[k] = v
		}
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			trimmedSliceHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "config.load", "invalid configuration value", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationHook accepts Go durations ("90s") and bare integers as seconds.
func durationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	s := data.(string)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil && fmt.Sprint(secs) == s {
		return time.Duration(secs) * time.Second, nil
	}
	return nil, fmt.Errorf("invalid duration %q", s)
}

// trimmedSliceHook splits comma lists and drops blank items.
func trimmedSliceHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	var out []string
	for _, part := range strings.Split(data.(string), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// Validate checks ranges and names. Failures are KindConfiguration.
func (c *Config) Validate() error {
	const op = "config.validate"

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return apperr.Configurationf(op, "APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.Port < 1 || c.Port > 65535 {
		return apperr.Configurationf(op, "API_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxFileSizeMB < 1 {
		return apperr.Configurationf(op, "MAX_FILE_SIZE_MB must be positive, got %d", c.MaxFileSizeMB)
	}
	if c.ConversionTimeoutSeconds < 1 {
		return apperr.Configurationf(op, "CONVERSION_TIMEOUT_SECONDS must be positive, got %d", c.ConversionTimeoutSeconds)
	}
	if c.DefaultWidth < c.MinWidth || c.DefaultWidth > c.MaxWidth {
		return apperr.Configurationf(op, "DEFAULT_IMAGE_WIDTH %d is outside [%d, %d]", c.DefaultWidth, c.MinWidth, c.MaxWidth)
	}
	if _, err := palette.ParsePolicy(c.Policy); err != nil {
		return apperr.Wrap(apperr.KindConfiguration, op, err.Error(), err)
	}
	if c.RedisAddr != "" && c.RedisTTL < 0 {
		return apperr.Configurationf(op, "REDIS_TTL must not be negative, got %s", c.RedisTTL)
	}

	conv, err := c.Converter()
	if err != nil {
		return err
	}
	return conv.Validate()
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes is the request body limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Source returns the palette location.
func (c *Config) Source() palette.Source {
	desc := c.BlocksJSON
	if !filepath.IsAbs(desc) {
		desc = filepath.Join(c.BlocksDir, desc)
	}
	return palette.Source{Descriptor: desc, TexturesDir: c.BlocksDir}
}

// PaletteOptions returns the palette build options.
func (c *Config) PaletteOptions() palette.Options {
	policy, _ := palette.ParsePolicy(c.Policy)
	return palette.Options{Policy: policy}
}

// Converter returns the conversion settings.
func (c *Config) Converter() (convert.Config, error) {
	const op = "config.converter"

	filter, err := imaging.ParseFilter(c.Filter)
	if err != nil {
		return convert.Config{}, apperr.Wrap(apperr.KindConfiguration, op, err.Error(), err)
	}
	metric, err := match.ParseMetric(c.Metric)
	if err != nil {
		return convert.Config{}, apperr.Wrap(apperr.KindConfiguration, op, err.Error(), err)
	}

	var bg *imaging.RGBColor
	if c.Background != "" {
		parsed, err := imaging.ParseHex(c.Background)
		if err != nil {
			return convert.Config{}, apperr.Wrap(apperr.KindConfiguration, op, "BACKGROUND_COLOR must be #RRGGBB", err)
		}
		bg = &parsed
	}

	return convert.Config{
		MinWidth:        c.MinWidth,
		MaxWidth:        c.MaxWidth,
		Timeout:         time.Duration(c.ConversionTimeoutSeconds) * time.Second,
		MaxPixels:       c.MaxPixels,
		MaxOutputPixels: c.MaxOutputPixels,
		Filter:          filter,
		Metric:          metric,
		Background:      bg,
	}, nil
}
