// Package httpapi exposes the orchestrator over HTTP: aggregate JSON
// translation, Server-Sent Events streaming and provider discovery.
package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/orchestrator"
	"github.com/valpere/perekladach/internal/registry"
	"github.com/valpere/perekladach/internal/translator"
)

// History records finished requests. *store.Store satisfies it.
type History interface {
	Record(ctx context.Context, req translator.Request, results []translator.Result) (string, error)
	SaveRequest(ctx context.Context, id string, req translator.Request) error
	SaveResults(ctx context.Context, requestID string, results []translator.Result) error
}

// SourceResolver replaces an empty or "auto" source language with a
// detected one. *detector.Detector satisfies it.
type SourceResolver interface {
	Resolve(text, sourceLang string) string
}

type Config struct {
	// Providers is the server-side provider configuration. A request's own
	// config slice for a provider replaces the server's slice for it.
	Providers   map[string]map[string]any
	CORSOrigins []string
	History     History
	Detector    SourceResolver
}

type Server struct {
	orch     *orchestrator.Orchestrator
	registry *registry.Registry
	config   Config
	validate *validator.Validate
	logger   *zap.Logger
}

func New(orch *orchestrator.Orchestrator, reg *registry.Registry, config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	return &Server{
		orch:     orch,
		registry: reg,
		config:   config,
		validate: newValidator(),
		logger:   logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/services", s.handleServices)
		r.Post("/translate", s.handleTranslate)
		r.Post("/translate/stream", s.handleStream)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Resource not found", nil)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type serviceInfo struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Aliases     []string `json:"aliases,omitempty"`
	Streams     bool     `json:"streams"`
	Credentials string   `json:"credentials"`
	Default     bool     `json:"default"`
}

func credentialsLabel(req registry.Requirement) string {
	switch req {
	case registry.RequiresAPIKey:
		return "api_key"
	case registry.RequiresKeyPair:
		return "key_pair"
	default:
		return "none"
	}
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[string]bool)
	for _, name := range s.registry.DefaultServices() {
		if e, ok := s.registry.Lookup(name); ok {
			defaults[e.Key] = true
		}
	}

	entries := s.registry.Entries()
	out := make([]serviceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, serviceInfo{
			Key:         e.Key,
			Name:        e.Name,
			Kind:        e.Kind.String(),
			Aliases:     e.Aliases,
			Streams:     e.Streams(),
			Credentials: credentialsLabel(e.Credentials),
			Default:     defaults[e.Key],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}
