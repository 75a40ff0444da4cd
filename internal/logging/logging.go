// Package logging builds the hclog loggers used across the service.
//
// Logs always go to stderr unless another writer is given: in MCP mode stdout
// carries the JSON-RPC stream and must stay clean.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultName is the root logger name.
const DefaultName = "block-mosaic"

// Options configures New.
type Options struct {
	// Name of the root logger. Empty means DefaultName.
	Name string

	// Level is one of trace, debug, info, warn, error. Unknown or empty
	// values mean info.
	Level string

	// JSON switches to one JSON object per line.
	JSON bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a root logger. Components derive their own with Named.
func New(opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		JSONFormat: opts.JSON,
		Output:     out,
		TimeFormat: "2006-01-02T15:04:05.000Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// ParseLevel maps a level name to an hclog level, defaulting to Info.
func ParseLevel(s string) hclog.Level {
	level := hclog.LevelFromString(strings.TrimSpace(s))
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}

// NewNop returns a logger that discards everything.
func NewNop() hclog.Logger {
	return hclog.NewNullLogger()
}
