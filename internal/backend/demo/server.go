package demo

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nathanbeddoewebdev/sirius/internal/backend"
	"nathanbeddoewebdev/sirius/internal/domain"
)

const shutdownTimeout = 5 * time.Second

// EncodeAll is safe for concurrent use.
var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

// Server exposes a domain.Backend over the query service wire protocol.
type Server struct {
	backend  domain.Backend
	catalog  domain.MetricCatalog
	logger   zerolog.Logger
	registry *prometheus.Registry
	token    string

	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerToken makes every query endpoint require "Bearer token".
func WithServerToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// NewServer serves b. When b also implements domain.MetricCatalog the
// metrics endpoint is enabled.
func NewServer(b domain.Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend:  b,
		logger:   zerolog.Nop(),
		registry: prometheus.NewRegistry(),
	}
	if c, ok := b.(domain.MetricCatalog); ok {
		s.catalog = c
	}
	for _, opt := range opts {
		opt(s)
	}

	factory := promauto.With(s.registry)
	s.queryDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sirius_demo",
		Name:      "query_duration_seconds",
		Help:      "Time spent answering a query",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	s.queryErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sirius_demo",
		Name:      "query_errors_total",
		Help:      "Queries answered with an error status",
	}, []string{"endpoint", "status"})
	return s
}

// Router returns the HTTP handler for every endpoint.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(backend.PathSamples, s.handleSamples).Methods(http.MethodPost)
	router.HandleFunc(backend.PathLogPage, s.handleLogPage).Methods(http.MethodPost)
	router.HandleFunc(backend.PathProcesses, s.handleProcesses).Methods(http.MethodPost)
	router.HandleFunc(backend.PathMetrics, s.handleMetrics).Methods(http.MethodPost)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Use(s.loggingMiddleware, s.authMiddleware)
	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("demo query service listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down demo server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// authMiddleware rejects query requests without the configured token.
// Health and metrics stay open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || !strings.HasPrefix(r.URL.Path, backend.PathPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			s.fail(w, strings.TrimPrefix(r.URL.Path, backend.PathPrefix), http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	const endpoint = "samples"
	defer s.observe(endpoint, time.Now())

	var req backend.SamplesRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	window, err := req.Window()
	if err != nil {
		s.fail(w, endpoint, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.backend.FetchSamples(r.Context(), domain.MetricID{ProcessID: req.ProcessID, Name: req.Metric}, window)
	if err != nil {
		s.failErr(w, endpoint, err)
		return
	}
	resp := backend.SamplesResponse{Points: batch.Points}
	if resp.Points == nil {
		resp.Points = []domain.DataPoint{}
	}
	if batch.Covered.Valid() {
		resp.Covered = backend.WireWindow{Begin: batch.Covered.Start, End: batch.Covered.End}
	}
	s.write(w, r, resp)
}

func (s *Server) handleLogPage(w http.ResponseWriter, r *http.Request) {
	const endpoint = "log_page"
	defer s.observe(endpoint, time.Now())

	var req backend.LogPageRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	page, err := s.backend.FetchLogPage(r.Context(), req.ProcessID, req.After, req.Limit)
	if err != nil {
		s.failErr(w, endpoint, err)
		return
	}
	s.write(w, r, page)
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	const endpoint = "processes"
	defer s.observe(endpoint, time.Now())

	var req backend.ProcessesRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	procs, err := s.backend.ListProcesses(r.Context())
	if err != nil {
		s.failErr(w, endpoint, err)
		return
	}
	if req.Limit > 0 && len(procs) > req.Limit {
		procs = procs[:req.Limit]
	}
	s.write(w, r, backend.ProcessesResponse{Processes: procs})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	const endpoint = "metrics"
	defer s.observe(endpoint, time.Now())

	if s.catalog == nil {
		s.fail(w, endpoint, http.StatusNotFound, "metric catalog not available")
		return
	}
	var req backend.MetricsRequest
	if !s.decode(w, r, endpoint, &req) {
		return
	}
	metrics, err := s.catalog.ListMetrics(r.Context(), req.ProcessID)
	if err != nil {
		s.failErr(w, endpoint, err)
		return
	}
	s.write(w, r, backend.MetricsResponse{Metrics: metrics})
}

func (s *Server) observe(endpoint string, start time.Time) {
	s.queryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, endpoint string, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.fail(w, endpoint, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// write encodes v as JSON, compressing it when the client accepts zstd.
func (s *Server) write(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if acceptsZstd(r) {
		body = zstdEncoder.EncodeAll(body, nil)
		w.Header().Set("Content-Encoding", backend.EncodingZstd)
	}
	if _, err := w.Write(body); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) failErr(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	var backendErr *domain.BackendError
	switch {
	case errors.As(err, &backendErr) && backendErr.Status != 0:
		status = backendErr.Status
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, context.Canceled):
		status = 499
	}
	msg := err.Error()
	if backendErr != nil && backendErr.Message != "" {
		msg = backendErr.Message
	}
	s.fail(w, endpoint, status, msg)
}

func (s *Server) fail(w http.ResponseWriter, endpoint string, status int, msg string) {
	s.queryErrors.WithLabelValues(endpoint, fmt.Sprint(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(backend.ErrorResponse{Error: msg})
}

func acceptsZstd(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, backend.EncodingZstd) {
			return true
		}
	}
	return false
}
