package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/block-mosaic/internal/convert"
	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/palette"
	"github.com/ironsheep/block-mosaic/internal/palette/palettetest"
)

// newTestServer builds a server over a red/blue palette with 2px tiles.
func newTestServer(t *testing.T) (*Server, palette.Source) {
	t.Helper()

	src := palettetest.WriteFixture(t, 2,
		palettetest.Block{ID: "red", Color: imaging.RGBColor{R: 255}},
		palettetest.Block{ID: "blue", Color: imaging.RGBColor{B: 255}},
	)
	cache := palette.NewCache(palette.Options{}, nil)
	conv, err := convert.New(convert.DefaultConfig(), cache, nil, nil)
	if err != nil {
		t.Fatalf("failed to create converter: %v", err)
	}

	s := New(Options{
		Converter:    conv,
		Palettes:     cache,
		Source:       src,
		DefaultWidth: 2,
	})
	return s, src
}

// createTestImageFile writes a PNG whose left half is left and right half is
// right, and returns its path.
func createTestImageFile(t *testing.T, width, height int, left, right color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
}

// toolText extracts the JSON text payload of a successful tool call.
func toolText(t *testing.T, resp *MCPResponse) string {
	t.Helper()

	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %s: %s", resp.Error.Message, resp.Error.Data)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatal("Result should contain exactly one content item")
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, ok := content[0]["text"].(string)
	if !ok {
		t.Fatal("content text should be a string")
	}
	return text
}

func expectToolError(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()

	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	if resp.Error == nil {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != code {
		t.Errorf("Error code: got %d, want %d", resp.Error.Code, code)
	}
}

func TestHandleToolsCall_MosaicConvert_Inline(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 40, 20, color.RGBA{250, 10, 10, 255}, color.RGBA{10, 10, 250, 255})

	text := toolText(t, callTool(t, s, "mosaic_convert", map[string]interface{}{
		"path":  imgPath,
		"width": 2,
	}))

	var result MosaicConvertResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}

	if result.Columns != 2 || result.Rows != 1 {
		t.Errorf("grid: got %dx%d, want 2x1", result.Columns, result.Rows)
	}
	if result.TileSize != 2 {
		t.Errorf("TileSize: got %d, want 2", result.TileSize)
	}
	if result.PixelWidth != 4 || result.PixelHeight != 2 {
		t.Errorf("pixels: got %dx%d, want 4x2", result.PixelWidth, result.PixelHeight)
	}
	if result.OutputPath != "" {
		t.Errorf("OutputPath should be empty, got %s", result.OutputPath)
	}

	counts := make(map[string]int)
	for _, b := range result.Blocks {
		counts[b.ID] = b.Count
	}
	if counts["red"] != 1 || counts["blue"] != 1 {
		t.Errorf("Blocks: got %v, want one red and one blue", result.Blocks)
	}

	if result.Image == nil {
		t.Fatal("Image should be returned inline")
	}
	if result.Image.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.Image.MimeType)
	}
	raw, err := base64.StdEncoding.DecodeString(result.Image.ImageBase64)
	if err != nil {
		t.Fatalf("image is not valid base64: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("image is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("decoded size: got %v, want 4x2", img.Bounds())
	}
	r, _, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || b>>8 != 0 {
		t.Errorf("left block should be red, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestHandleToolsCall_MosaicConvert_DefaultWidth(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 40, 40, color.RGBA{255, 0, 0, 255}, color.RGBA{255, 0, 0, 255})

	text := toolText(t, callTool(t, s, "mosaic_convert", map[string]interface{}{
		"path": imgPath,
	}))

	var result MosaicConvertResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if result.Columns != 2 || result.Rows != 2 {
		t.Errorf("grid: got %dx%d, want 2x2", result.Columns, result.Rows)
	}
	if len(result.Blocks) != 1 || result.Blocks[0].ID != "red" || result.Blocks[0].Count != 4 {
		t.Errorf("Blocks: got %v, want red x4", result.Blocks)
	}
}

func TestHandleToolsCall_MosaicConvert_OutputPath(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 40, 20, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255})
	outPath := filepath.Join(t.TempDir(), "nested", "mosaic.png")

	text := toolText(t, callTool(t, s, "mosaic_convert", map[string]interface{}{
		"path":        imgPath,
		"width":       2,
		"output_path": outPath,
		"grid":        true,
	}))

	var result MosaicConvertResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if result.OutputPath != outPath {
		t.Errorf("OutputPath: got %s, want %s", result.OutputPath, outPath)
	}
	if result.Image != nil {
		t.Error("Image should not be returned when output_path is set")
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 2 {
		t.Errorf("output size: got %dx%d, want 4x2", cfg.Width, cfg.Height)
	}
}

func TestHandleToolsCall_MosaicConvert_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 10, 10, color.White, color.White)

	notImage := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(notImage, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"nonexistent file", map[string]interface{}{"path": "/nonexistent/image.png"}},
		{"not an image", map[string]interface{}{"path": notImage}},
		{"width too large", map[string]interface{}{"path": imgPath, "width": 10000}},
		{"negative width", map[string]interface{}{"path": imgPath, "width": -1}},
		{"bad grid color", map[string]interface{}{"path": imgPath, "grid": true, "grid_color": "red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectToolError(t, callTool(t, s, "mosaic_convert", tt.args), -32000)
		})
	}
}

func TestHandleToolsCall_MatchColor(t *testing.T) {
	s, _ := newTestServer(t)

	text := toolText(t, callTool(t, s, "mosaic_match_color", map[string]interface{}{
		"color": "#FE0101",
	}))

	var result MatchColorResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if result.Block != "red" {
		t.Errorf("Block: got %s, want red", result.Block)
	}
	if result.Texture != "red.png" {
		t.Errorf("Texture: got %s, want red.png", result.Texture)
	}
	if result.BlockColor.Hex != "#FF0000" {
		t.Errorf("BlockColor: got %s, want #FF0000", result.BlockColor.Hex)
	}
	if result.Input.Hex != "#FE0101" {
		t.Errorf("Input: got %s, want #FE0101", result.Input.Hex)
	}
	if result.DistanceSq != 3 {
		t.Errorf("DistanceSq: got %d, want 3", result.DistanceSq)
	}
	if result.DeltaE <= 0 || result.DeltaE > 0.05 {
		t.Errorf("DeltaE: got %f, want a small positive value", result.DeltaE)
	}
}

func TestHandleToolsCall_MatchColor_Invalid(t *testing.T) {
	s, _ := newTestServer(t)

	for _, c := range []string{"", "red", "#GGGGGG"} {
		t.Run(c, func(t *testing.T) {
			expectToolError(t, callTool(t, s, "mosaic_match_color", map[string]interface{}{"color": c}), -32000)
		})
	}
}

func TestHandleToolsCall_PaletteInfo(t *testing.T) {
	s, src := newTestServer(t)

	text := toolText(t, callTool(t, s, "palette_info", nil))

	var summary palette.Summary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if summary.Count != 2 {
		t.Errorf("Count: got %d, want 2", summary.Count)
	}
	if summary.TileSize != 2 {
		t.Errorf("TileSize: got %d, want 2", summary.TileSize)
	}
	if summary.Descriptor != src.Descriptor {
		t.Errorf("Descriptor: got %s, want %s", summary.Descriptor, src.Descriptor)
	}
	if len(summary.Entries) != 2 || summary.Entries[0].ID != "red" || summary.Entries[1].ID != "blue" {
		t.Errorf("Entries should list red then blue, got %v", summary.Entries)
	}
}

func TestHandleToolsCall_PaletteReload(t *testing.T) {
	s, src := newTestServer(t)

	before := toolText(t, callTool(t, s, "palette_info", nil))

	reloaded := toolText(t, callTool(t, s, "palette_reload", nil))
	var summary palette.Summary
	if err := json.Unmarshal([]byte(reloaded), &summary); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if summary.Count != 2 {
		t.Errorf("Count: got %d, want 2", summary.Count)
	}

	// A failed reload keeps the previous palette in service.
	if err := os.Remove(src.Descriptor); err != nil {
		t.Fatalf("failed to remove descriptor: %v", err)
	}
	expectToolError(t, callTool(t, s, "palette_reload", nil), -32000)

	after := toolText(t, callTool(t, s, "palette_info", nil))
	if after == before {
		t.Error("palette_info should report the reloaded palette, not the first load")
	}
	var kept palette.Summary
	if err := json.Unmarshal([]byte(after), &kept); err != nil {
		t.Fatalf("Failed to unmarshal result: %v", err)
	}
	if !kept.LoadedAt.Equal(summary.LoadedAt) {
		t.Errorf("LoadedAt: got %v, want %v", kept.LoadedAt, summary.LoadedAt)
	}
}

func TestHandleToolsCall_PaletteMissing(t *testing.T) {
	s, _ := newTestServer(t)
	s.source = palette.Source{
		Descriptor:  filepath.Join(t.TempDir(), "missing.json"),
		TexturesDir: t.TempDir(),
	}

	expectToolError(t, callTool(t, s, "palette_info", nil), -32000)
	expectToolError(t, callTool(t, s, "mosaic_match_color", map[string]interface{}{"color": "#000000"}), -32000)
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s, _ := newTestServer(t)

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	expectToolError(t, resp, -32000)
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, "unknown tool") {
		t.Errorf("Error data should name the unknown tool, got %s", resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`not valid json`),
	})
	expectToolError(t, resp, -32602)
}

func TestExecuteTool_AllTools(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 20, 20, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255})

	args := map[string]string{
		"mosaic_convert":     `{"path":"` + imgPath + `"}`,
		"mosaic_match_color": `{"color":"#0000FF"}`,
		"palette_info":       `{}`,
		"palette_reload":     ``,
	}

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			a, ok := args[tool.Name]
			if !ok {
				t.Fatalf("no test arguments for %s", tool.Name)
			}
			result, err := s.executeTool(context.Background(), tool.Name, json.RawMessage(a))
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tool.Name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tool.Name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(Options{})
	_, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.executeTool(context.Background(), "mosaic_convert", json.RawMessage(`{invalid}`))
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestExecuteTool_Cancelled(t *testing.T) {
	s, _ := newTestServer(t)
	imgPath := createTestImageFile(t, 20, 20, color.White, color.White)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.executeTool(ctx, "mosaic_convert", json.RawMessage(`{"path":"`+imgPath+`"}`))
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}
