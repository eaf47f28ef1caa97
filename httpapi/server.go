// Package httpapi exposes the ingestion pipeline and the stored food logs
// over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"foodlog"
	"foodlog/agent"
	"foodlog/record"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultUserID         = 1
)

// Ingestor runs one upload through the pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, up agent.Upload) (agent.IngestResponse, error)
}

type Options struct {
	MaxUploadBytes int64
	DefaultUserID  int64
	// Notifier is told about every reconciled ingestion. Optional.
	Notifier foodlog.Notifier
	Tracer   trace.Tracer
}

type Server struct {
	ingestor Ingestor
	records  record.Store
	opts     Options
}

func NewServer(ingestor Ingestor, records record.Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.DefaultUserID <= 0 {
		opts.DefaultUserID = defaultUserID
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(foodlog.TracerNameHTTP)
	}
	return &Server{ingestor: ingestor, records: records, opts: opts}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(requestTracer(s.opts.Tracer))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)

	r.Post("/ai/agent/upload", s.upload)

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", s.listLogsByQuery)
		r.Get("/user/{userId}", s.listLogsByUser)
		r.Get("/{id}", s.getLog)
		r.Delete("/{id}", s.deleteLog)
	})

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type failure struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("HTTP: Failed to encode response", "error", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failure{Status: "FAILED", Message: message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("HTTP: Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func requestTracer(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if pattern := chi.RouteContext(ctx).RoutePattern(); pattern != "" {
				span.SetName(r.Method + " " + pattern)
			}
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.Int("http.response.status_code", ww.Status()),
			)
			if ww.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(ww.Status()))
			}
		})
	}
}
