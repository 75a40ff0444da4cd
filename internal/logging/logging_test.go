package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want hclog.Level
	}{
		{"", hclog.Info},
		{"debug", hclog.Debug},
		{"TRACE", hclog.Trace},
		{" warn ", hclog.Warn},
		{"error", hclog.Error},
		{"chatty", hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "info", Output: &buf})

	logger.Named("palette").Info("palette loaded", "blocks", 3)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "block-mosaic.palette: palette loaded")
	assert.Contains(t, out, "blocks=3")
	assert.NotContains(t, out, "hidden")
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Name: "test", Level: "debug", JSON: true, Output: &buf})

	logger.Debug("conversion finished", "columns", 4)

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "conversion finished", entry["@message"])
	assert.Equal(t, "test", entry["@module"])
	assert.Equal(t, "debug", entry["@level"])
	assert.EqualValues(t, 4, entry["columns"])
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("dropped")
	assert.NotNil(t, logger.Named("x"))
}
