// Package gateway serves the intent, itinerary, chat and geocode routes on
// top of an LLM completer.
//
// Routes:
//
//	POST /api/intent
//	POST /api/itinerary
//	POST /api/chat
//	GET  /api/geocode?q=
//	GET  /health
//	GET  /metrics
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/llm"
	"github.com/c360studio/nomadplan/metrics"
	"github.com/c360studio/nomadplan/model"
	"github.com/c360studio/nomadplan/tripapi"
)

// DefaultRequestTimeout bounds a single request including model calls.
const DefaultRequestTimeout = 120 * time.Second

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// Geocoder resolves a free-text place.
type Geocoder interface {
	Lookup(ctx context.Context, q string) (geocode.Point, error)
}

// HealthReporter reports the health of model endpoints.
type HealthReporter interface {
	HealthReport() map[string]model.EndpointHealth
}

// Server is the HTTP gateway.
type Server struct {
	completer      llm.Completer
	geocoder       Geocoder
	health         HealthReporter
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	logger         *slog.Logger
	requestTimeout time.Duration
	corsOrigins    []string
	rateLimit      float64
	rateBurst      int
}

// Option configures a Server.
type Option func(*Server)

// WithGeocoder enables GET /api/geocode.
func WithGeocoder(g Geocoder) Option {
	return func(s *Server) {
		s.geocoder = g
	}
}

// WithHealthReporter adds model endpoint health to GET /health.
func WithHealthReporter(h HealthReporter) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics records request metrics and serves GET /metrics from gatherer.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRequestTimeout bounds handler execution.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithCORSOrigins allows cross-origin browser calls from the given origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRateLimit limits each client to rps requests per second on /api
// routes. Zero disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

// New creates a gateway backed by completer.
func New(completer llm.Completer, opts ...Option) *Server {
	s := &Server{
		completer:      completer,
		logger:         slog.Default(),
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(newClientLimiter(s.rateLimit, s.rateBurst).middleware)
		}
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Post(tripapi.IntentPath, s.handleIntent)
		r.Post(tripapi.ItineraryPath, s.handleItinerary)
		r.Post(tripapi.ChatPath, s.handleChat)
		if s.geocoder != nil {
			r.Get(tripapi.GeocodePath, s.handleGeocode)
		}
	})

	return r
}

// observe logs each request and records it in metrics under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(route, r.Method, status, elapsed)
		s.logger.Debug("HTTP request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed)
	})
}
