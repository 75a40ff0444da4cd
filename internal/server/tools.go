package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Conversion
		{
			Name:        "mosaic_convert",
			Description: "Convert an image file into a mosaic of block textures. Each block replaces one area of the source; the result is tile_size times larger than the block grid. Returns the grid size, a bill of materials (blocks used, most frequent first) and either writes a PNG to output_path or returns it as base64.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source image (PNG, JPEG, GIF, BMP, TIFF or WebP)",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Mosaic width in blocks. Height follows the source aspect ratio. Defaults to the server's default width",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional path to write the PNG to instead of returning it inline",
					},
					"grid": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw block boundaries as a building guide. Default false",
						"default":     false,
					},
					"grid_every": map[string]interface{}{
						"type":        "integer",
						"description": "Draw a boundary every N blocks. Default 1",
						"default":     1,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid intersections with column,row block coordinates. Default false",
						"default":     false,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as #RRGGBB or #RRGGBBAA. Default #FF000080",
						"default":     "#FF000080",
					},
					"preview_width": map[string]interface{}{
						"type":        "integer",
						"description": "Downscale the inline image to at most this many pixels wide. 0 returns full size",
						"default":     0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Palette
		{
			Name:        "mosaic_match_color",
			Description: "Find the palette block whose representative color is closest to a given color, using the converter's color metric.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Color as #RRGGBB",
					},
				},
				"required": []string{"color"},
			},
		},
		{
			Name:        "palette_info",
			Description: "Describe the loaded block palette: tile size, color policy, and every block with its representative color in hex, RGB and HSL.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "palette_reload",
			Description: "Reload the block palette from disk after the descriptor or textures changed. On failure the previous palette stays in use.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
