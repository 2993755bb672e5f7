package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/evaluation"
	"github.com/couchcryptid/wildfire-risk-service/internal/form"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
)

// Service is the prediction backend behind the dashboard.
type Service interface {
	CheckReadiness(ctx context.Context) error
	Forests() []string
	Features(ctx context.Context, forest string) ([]domain.FeatureDescriptor, error)
	Form(ctx context.Context, forest string, now time.Time) (*form.Form, error)
	Assess(ctx context.Context, forest string, values map[string]float64, useRebalancing bool) (domain.Prediction, error)
	Diagnostics(ctx context.Context, forest string, useRebalancing bool) (*evaluation.Report, error)
}

// EventPublisher receives one event per served prediction.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PredictionEvent) error
}

// Options holds the server's optional collaborators.
type Options struct {
	Events   EventPublisher
	Reporter observability.ErrorReporter
}

// Server exposes the dashboard pages, the JSON API, and the health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        Service
	events     EventPublisher
	reporter   observability.ErrorReporter
	pages      pages
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(addr string, svc Service, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	reporter := opts.Reporter
	if reporter == nil {
		reporter = observability.NopReporter{}
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// First loads may download artifacts and evaluate a model.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:      svc,
		events:   opts.Events,
		reporter: reporter,
		pages:    loadPages(),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /forests/{forest}/model", s.handleModelPage)
	mux.HandleFunc("GET /forests/{forest}/predict", s.handlePredictPage)
	mux.HandleFunc("POST /forests/{forest}/predict", s.handlePredictSubmit)
	mux.HandleFunc("GET /forests/{forest}/features.xlsx", s.handleFeatureExport)

	mux.HandleFunc("GET /api/forests", s.handleListForests)
	mux.HandleFunc("GET /api/forests/{forest}/form", s.handleGetForm)
	mux.HandleFunc("POST /api/forests/{forest}/predict", s.handlePredict)
	mux.HandleFunc("GET /api/forests/{forest}/diagnostics", s.handleDiagnostics)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// predict resolves raw control values against the forest's form, runs the
// model, and publishes the outcome when events are enabled. strict requires a
// value for every control; otherwise untouched controls take their defaults.
func (s *Server) predict(ctx context.Context, forest string, inputs map[string]string, useRebalancing, strict bool) (*form.Form, domain.Prediction, error) {
	f, err := s.svc.Form(ctx, forest, domain.Now())
	if err != nil {
		return nil, domain.Prediction{}, err
	}
	resolve := f.Resolve
	if strict {
		resolve = f.ResolveStrict
	}
	values, err := resolve(inputs)
	if err != nil {
		return f, domain.Prediction{}, err
	}
	pred, err := s.svc.Assess(ctx, forest, values, useRebalancing)
	if err != nil {
		return f, domain.Prediction{}, err
	}

	if s.events != nil {
		event := domain.NewPredictionEvent(pred, values)
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("prediction event not published", "id", event.ID, "forest", forest, "error", err)
		}
	}
	return f, pred, nil
}

// statusFor maps a prediction-path error to its HTTP status. Internal
// failures are logged and reported.
func (s *Server) statusFor(r *http.Request, err error) int {
	kind := pipeline.ErrorKind(err)
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "invalid_input":
		return http.StatusBadRequest
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	s.reporter.CaptureError(r.Context(), err, map[string]string{
		"route": r.Pattern,
		"kind":  kind,
	})
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, s.statusFor(r, err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func parseSMOTE(v string) bool {
	switch v {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
