package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/ironsheep/block-mosaic/internal/convert"
	"github.com/ironsheep/block-mosaic/internal/metrics"
	"github.com/ironsheep/block-mosaic/internal/palette"
	"github.com/ironsheep/block-mosaic/internal/resultcache"
)

// Options wires the handler to the core.
type Options struct {
	Converter *convert.Converter
	Palettes  *palette.Cache
	Source    palette.Source

	// Results caches encoded outputs. Nil disables caching.
	Results resultcache.Store

	// Recorder may be nil.
	Recorder *metrics.Recorder

	// Logger may be nil.
	Logger hclog.Logger

	// AllowedOrigins lists the CORS origins; "*" allows any.
	AllowedOrigins []string

	// MaxUploadBytes bounds the request body of conversions.
	MaxUploadBytes int64

	// DefaultWidth is used when a request has no width field.
	DefaultWidth int
}

// Server holds the handler dependencies.
type Server struct {
	opts   Options
	logger hclog.Logger
}

// NewHandler builds the HTTP handler.
func NewHandler(opts Options) http.Handler {
	if opts.Results == nil {
		opts.Results = resultcache.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = 128
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	s := &Server{opts: opts, logger: opts.Logger.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(corsHandler(opts.AllowedOrigins))

	r.Post("/minecraftify", s.Convert)
	r.Post("/convert", s.Convert)
	r.Get("/health", s.Health)
	r.Get("/palette", s.Palette)
	r.Post("/palette/reload", s.ReloadPalette)
	r.Handle("/metrics", opts.Recorder.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
