package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/block-mosaic/internal/apperr"
	"github.com/ironsheep/block-mosaic/internal/metrics"
	"github.com/ironsheep/block-mosaic/internal/mosaic"
	"github.com/ironsheep/block-mosaic/internal/palette"
	"github.com/ironsheep/block-mosaic/internal/resultcache"
)

// allowedExtensions are the upload types accepted by the converter endpoint.
var allowedExtensions = []string{"png", "jpg", "jpeg"}

// multipartMemory is the in-memory threshold for parsed uploads; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a conversion error to its HTTP status and public message.
// Internal details are logged, not returned.
func statusFor(err error) (int, string) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "Conversion failed. Please try a different image."
	}
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, apperr.Message(err)
	case apperr.KindDecode:
		return http.StatusBadRequest, "Invalid image format or corrupted image"
	case apperr.KindConfiguration:
		return http.StatusInternalServerError, "Server configuration error. Blocks palette could not be loaded."
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout, "Conversion took too long. Try a smaller image or fewer blocks."
	default:
		return http.StatusInternalServerError, "Conversion failed. Please try a different image."
	}
}

func allowedFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, a := range allowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Convert handles POST /minecraftify and POST /convert.
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.MaxUploadBytes
	tooLarge := fmt.Sprintf("File too large. Maximum size: %d MB", limit>>20)
	if r.ContentLength > limit {
		s.logger.Warn("upload exceeds limit", "content_length", r.ContentLength, "limit", limit)
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.logger.Warn("upload exceeds limit", "limit", limit)
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		// A part sent with an empty filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["image"]; ok {
			writeError(w, http.StatusBadRequest, "Empty filename")
			return
		}
		s.logger.Warn("request missing image field")
		writeError(w, http.StatusBadRequest, "Missing file field 'image'")
		return
	}
	header := files[0]
	if !allowedFile(header.Filename) {
		s.logger.Warn("invalid file type", "filename", filepath.Base(header.Filename))
		writeError(w, http.StatusBadRequest, "Invalid file type. Allowed: "+strings.Join(allowedExtensions, ", "))
		return
	}

	cfg := s.opts.Converter.Config()
	width := s.opts.DefaultWidth
	if raw := strings.TrimSpace(r.FormValue("width")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || cfg.ValidateWidth(n) != nil {
			s.logger.Warn("invalid width", "width", raw)
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid width. Must be between %d and %d", cfg.MinWidth, cfg.MaxWidth))
			return
		}
		width = n
	}

	grid, every, ok := gridParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid grid parameters")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image file could not be read")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Image file could not be read")
		return
	}
	if len(data) == 0 {
		s.logger.Warn("empty image file")
		writeError(w, http.StatusBadRequest, "Image file is empty")
		return
	}

	pal, err := s.opts.Palettes.Get(s.opts.Source)
	if err != nil {
		s.fail(w, err)
		return
	}
	key := resultcache.Key(data, s.keyParams(pal, width, grid, every))

	if cached, found, err := s.opts.Results.Get(r.Context(), key); err != nil {
		s.logger.Warn("result cache read failed", "error", err)
	} else if found {
		s.opts.Recorder.Conversion(metrics.OutcomeCacheHit, 0, 0)
		if dims, _, err := image.DecodeConfig(bytes.NewReader(cached)); err == nil {
			setMosaicHeaders(w, dims.Width/pal.TileSize, dims.Height/pal.TileSize, pal.TileSize)
		}
		w.Header().Set("X-Mosaic-Cache", "hit")
		writePNG(w, cached)
		return
	}

	s.logger.Info("converting image", "filename", filepath.Base(header.Filename), "width", width)
	res, err := s.opts.Converter.Convert(r.Context(), data, width, s.opts.Source)
	if err != nil {
		s.fail(w, err)
		return
	}

	var out image.Image = res.Image
	if grid {
		overlay, err := mosaic.GridOverlay(res.Image, res.TileSize, every, false, "")
		if err != nil {
			s.fail(w, err)
			return
		}
		out = overlay
	}
	encoded, err := mosaic.EncodePNG(out)
	if err != nil {
		s.fail(w, err)
		return
	}

	if err := s.opts.Results.Set(r.Context(), key, encoded); err != nil {
		s.logger.Warn("result cache write failed", "error", err)
	}

	setMosaicHeaders(w, res.Columns, res.Rows, res.TileSize)
	w.Header().Set("X-Mosaic-Cache", "miss")
	s.logger.Info("conversion successful", "bytes", len(encoded))
	writePNG(w, encoded)
}

// gridParams reads the optional grid and grid_every fields.
func gridParams(r *http.Request) (grid bool, every int, ok bool) {
	every = 1
	if raw := strings.TrimSpace(r.FormValue("grid")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return false, 0, false
		}
		grid = b
	}
	if raw := strings.TrimSpace(r.FormValue("grid_every")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return false, 0, false
		}
		every = n
	}
	return grid, every, true
}

func setMosaicHeaders(w http.ResponseWriter, columns, rows, tileSize int) {
	h := w.Header()
	h.Set("X-Mosaic-Columns", strconv.Itoa(columns))
	h.Set("X-Mosaic-Rows", strconv.Itoa(rows))
	h.Set("X-Mosaic-Tile-Size", strconv.Itoa(tileSize))
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("conversion error", "status", status, "error", err)
	} else {
		s.logger.Warn("conversion rejected", "status", status, "error", err)
	}
	writeError(w, status, msg)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Palette handles GET /palette.
func (s *Server) Palette(w http.ResponseWriter, r *http.Request) {
	pal, err := s.opts.Palettes.Get(s.opts.Source)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pal.Summarize())
}

// ReloadPalette handles POST /palette/reload.
func (s *Server) ReloadPalette(w http.ResponseWriter, r *http.Request) {
	pal, err := s.opts.Palettes.Reload(s.opts.Source)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pal.Summarize())
}

// keyParams collects everything besides the upload that shapes the output.
func (s *Server) keyParams(pal *palette.Palette, width int, grid bool, every int) resultcache.KeyParams {
	cfg := s.opts.Converter.Config()
	params := resultcache.KeyParams{
		Width:   width,
		Palette: pal.Digest,
		Metric:  string(cfg.Metric),
		Filter:  string(cfg.Filter),
	}
	if cfg.Background != nil {
		params.Background = cfg.Background.Hex()
	}
	if grid {
		params.GridEvery = every
	}
	return params
}
