// Package metrics exposes conversion and palette metrics to Prometheus.
//
// A Recorder owns its own registry rather than the global default, so tests
// and multiple servers in one process do not collide. A nil *Recorder is
// valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK                 = "ok"
	OutcomeValidationError    = "validation_error"
	OutcomeDecodeError        = "decode_error"
	OutcomeConfigurationError = "configuration_error"
	OutcomeTimeout            = "timeout"
	OutcomeError              = "error"
	OutcomeCacheHit           = "cache_hit"
)

// Recorder collects service metrics.
type Recorder struct {
	registry *prometheus.Registry

	conversions  *prometheus.CounterVec
	duration     prometheus.Histogram
	cells        prometheus.Counter
	paletteLoads *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mosaic_conversions_total",
				Help: "Conversions by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mosaic_conversion_duration_seconds",
				Help:    "Wall time of successful conversions.",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		cells: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mosaic_cells_total",
				Help: "Mosaic cells matched and rendered.",
			},
		),
		paletteLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mosaic_palette_loads_total",
				Help: "Palette loads from disk by outcome.",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(
		r.conversions,
		r.duration,
		r.cells,
		r.paletteLoads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Conversion records one finished conversion. Duration and cells are only
// observed for OutcomeOK.
func (r *Recorder) Conversion(outcome string, elapsed time.Duration, cells int) {
	if r == nil {
		return
	}
	r.conversions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.duration.Observe(elapsed.Seconds())
		r.cells.Add(float64(cells))
	}
}

// PaletteLoad records one palette load attempt.
func (r *Recorder) PaletteLoad(err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.paletteLoads.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
