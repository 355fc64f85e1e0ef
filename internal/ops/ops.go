// Package ops serves the operational HTTP endpoints: a health probe and the
// member counts.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/membergate/core/buildinfo"
	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/internal/member"
)

// Probe is the storage view the endpoints need.
type Probe interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (member.Stats, error)
}

type healthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Build    buildinfo.Info `json:"build"`
	Error    string         `json:"error,omitempty"`
}

type statsResponse struct {
	Total        int      `json:"total"`
	Approved     int      `json:"approved"`
	Pending      int      `json:"pending"`
	ApprovalRate *float64 `json:"approval_rate,omitempty"`
}

// NewRouter builds the chi router for the ops endpoints.
func NewRouter(probe Probe) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		resp := healthResponse{Status: "ok", Database: "ok", Build: buildinfo.Current()}
		code := http.StatusOK
		if err := probe.Ping(req.Context()); err != nil {
			resp.Status, resp.Database, resp.Error = "degraded", "unreachable", err.Error()
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		s, err := probe.Stats(req.Context())
		if err != nil {
			logger.Error(req.Context(), "ops", "stats.failed", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
			return
		}
		resp := statsResponse{Total: s.Total, Approved: s.Approved, Pending: s.Pending}
		if rate, ok := s.ApprovalRate(); ok {
			resp.ApprovalRate = &rate
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		logger.Debug(ctx, "ops", "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Duration("took", logger.RoundMS(time.Since(start))),
		)
	})
}

// Server runs the ops router on a TCP address.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewServer constructs a Server listening on addr.
func NewServer(addr string, shutdownTimeout time.Duration, probe Probe) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(probe),
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()
	logger.Info(ctx, "ops", "http.listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info(shutdownCtx, "ops", "http.stopped")
	return nil
}
