package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/mosaic"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "mosaic_convert", "palette_info").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Fetches the palette from the shared cache as needed
//  4. Calls the converter or palette functions
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Conversion
	case "mosaic_convert":
		return s.handleMosaicConvert(ctx, args)

	// Palette
	case "mosaic_match_color":
		return s.handleMatchColor(args)
	case "palette_info":
		return s.handlePaletteInfo()
	case "palette_reload":
		return s.handlePaletteReload()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Conversion Handlers ===

type mosaicConvertArgs struct {
	Path            string `json:"path"`
	Width           int    `json:"width"`
	OutputPath      string `json:"output_path"`
	Grid            bool   `json:"grid"`
	GridEvery       int    `json:"grid_every"`
	ShowCoordinates bool   `json:"show_coordinates"`
	GridColor       string `json:"grid_color"`
	PreviewWidth    int    `json:"preview_width"`
}

// MosaicConvertResult is the mosaic_convert tool output.
type MosaicConvertResult struct {
	Columns     int                  `json:"columns"`
	Rows        int                  `json:"rows"`
	TileSize    int                  `json:"tile_size"`
	PixelWidth  int                  `json:"pixel_width"`
	PixelHeight int                  `json:"pixel_height"`
	Blocks      []mosaic.BlockCount  `json:"blocks"`
	MeanError   float64              `json:"mean_error"`
	ElapsedMs   int64                `json:"elapsed_ms"`
	OutputPath  string               `json:"output_path,omitempty"`
	Image       *mosaic.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleMosaicConvert(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a mosaicConvertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.Width == 0 {
		a.Width = s.defaultWidth
	}
	if a.GridEvery == 0 {
		a.GridEvery = 1
	}
	if a.GridColor == "" {
		a.GridColor = mosaic.DefaultGridColor
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	res, err := s.conv.Convert(ctx, data, a.Width, s.source)
	if err != nil {
		return nil, err
	}

	var out image.Image = res.Image
	if a.Grid {
		overlay, err := mosaic.GridOverlay(res.Image, res.TileSize, a.GridEvery, a.ShowCoordinates, a.GridColor)
		if err != nil {
			return nil, err
		}
		out = overlay
	}

	result := &MosaicConvertResult{
		Columns:     res.Columns,
		Rows:        res.Rows,
		TileSize:    res.TileSize,
		PixelWidth:  res.Image.Bounds().Dx(),
		PixelHeight: res.Image.Bounds().Dy(),
		Blocks:      res.Blocks,
		MeanError:   res.MeanError,
		ElapsedMs:   res.Elapsed.Milliseconds(),
	}

	if a.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.OutputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := imgio.Save(a.OutputPath, out, imgio.PNGEncoder()); err != nil {
			return nil, fmt.Errorf("failed to write mosaic: %w", err)
		}
		result.OutputPath = a.OutputPath
		return result, nil
	}

	encoded, err := mosaic.EncodeBase64(mosaic.Preview(out, a.PreviewWidth))
	if err != nil {
		return nil, err
	}
	result.Image = encoded
	return result, nil
}

// === Palette Handlers ===

type matchColorArgs struct {
	Color string `json:"color"`
}

// MatchColorResult is the mosaic_match_color tool output.
type MatchColorResult struct {
	Input      imaging.ColorResult `json:"input"`
	Block      string              `json:"block"`
	Texture    string              `json:"texture"`
	BlockColor imaging.ColorResult `json:"block_color"`
	DistanceSq int                 `json:"distance_sq"`
	DeltaE     float64             `json:"delta_e"`
}

func (s *Server) handleMatchColor(args json.RawMessage) (interface{}, error) {
	var a matchColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	c, err := imaging.ParseHex(a.Color)
	if err != nil {
		return nil, err
	}

	e, err := s.conv.Match(s.source, c)
	if err != nil {
		return nil, err
	}
	return &MatchColorResult{
		Input:      c.Describe(),
		Block:      e.ID,
		Texture:    e.TextureFile,
		BlockColor: e.Color.Describe(),
		DistanceSq: c.DistanceSq(e.Color),
		DeltaE:     c.Colorful().DistanceLab(e.Color.Colorful()),
	}, nil
}

func (s *Server) handlePaletteInfo() (interface{}, error) {
	p, err := s.palettes.Get(s.source)
	if err != nil {
		return nil, err
	}
	return p.Summarize(), nil
}

func (s *Server) handlePaletteReload() (interface{}, error) {
	p, err := s.palettes.Reload(s.source)
	if err != nil {
		return nil, err
	}
	s.logger.Info("palette reloaded", "blocks", p.Len())
	return p.Summarize(), nil
}
