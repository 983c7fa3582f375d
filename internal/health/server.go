package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/ManuGH/streamvcr/internal/log"
)

const (
	defaultMaxConns     = 32
	defaultRequestLimit = 120
	defaultWindow       = time.Minute
	readHeaderTimeout   = 5 * time.Second
)

// ServerConfig configures the ops server.
type ServerConfig struct {
	Addr string
	// MaxConns caps simultaneously accepted connections.
	MaxConns int
	// RequestLimit is the per-IP request budget per Window.
	RequestLimit int
	Window       time.Duration
}

// NewRouter mounts probes, Prometheus metrics and the job board.
func NewRouter(m *Manager, jobs JobSource, cfg ServerConfig) http.Handler {
	limit, window := cfg.RequestLimit, cfg.Window
	if limit <= 0 {
		limit = defaultRequestLimit
	}
	if window <= 0 {
		window = defaultWindow
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	))

	r.Get("/healthz", m.ServeHealth)
	r.Get("/readyz", m.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Get("/", serveJobs(jobs))
		r.Get("/{jobID}", serveJob(jobs))
	})
	return r
}

func serveJobs(jobs JobSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, jobs.Snapshot(), func(err error) {
			logger := log.WithComponentFromContext(r.Context(), "ops")
			logger.Error().Err(err).
				Str("event", "jobs.encode_error").Msg("failed to encode job board")
		})
	}
}

func serveJob(jobs JobSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		for _, st := range jobs.Snapshot().Jobs {
			if st.JobID == id {
				writeJSON(w, http.StatusOK, st, nil)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job_not_found", "job_id": id}, nil)
	}
}

// Server is a running ops HTTP server.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	done   chan error
	logger zerolog.Logger
}

// Start listens on cfg.Addr and serves handler in the background.
func Start(cfg ServerConfig, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	s := &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ln:     netutil.LimitListener(ln, maxConns),
		done:   make(chan error, 1),
		logger: log.WithComponent("ops"),
	}
	go func() {
		err := s.srv.Serve(s.ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info().
		Str("event", "ops.listening").
		Str("addr", s.Addr()).
		Msg("ops server listening")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return <-s.done
}
