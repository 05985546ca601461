// Package server exposes the dialog driver and goal judge over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/logging"
	"github.com/sustech/latch/internal/store"
)

// APIKeyHeader carries a per-request model API key.
const APIKeyHeader = "X-API-Key"

const maxBodyBytes = 1 << 20

// Server wires the HTTP routes. Sessions is optional.
type Server struct {
	driver    *dialog.Driver
	evaluator *judge.Evaluator
	levels    *levels.Registry
	sessions  store.SessionRepo
}

// New creates a server.
func New(driver *dialog.Driver, evaluator *judge.Evaluator, reg *levels.Registry, sessions store.SessionRepo) *Server {
	return &Server{driver: driver, evaluator: evaluator, levels: reg, sessions: sessions}
}

// Router builds the mux router with all routes and middleware.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)
	router.Use(apiKeyMiddleware)
	router.Use(logMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	router.HandleFunc("/levels", s.listLevels).Methods(http.MethodGet)
	router.HandleFunc("/levels/{id}", s.getLevel).Methods(http.MethodGet)
	router.HandleFunc("/levels/{id}/reply", s.reply).Methods(http.MethodPost)
	router.HandleFunc("/levels/{id}/evaluate", s.evaluate).Methods(http.MethodPost)

	if s.sessions != nil {
		router.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
		router.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	}

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
		logging.Info().Add(logging.Str("addr", addr)).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info().Msg("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+APIKeyHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware makes the X-API-Key header available to
// credential.ContextSource for the rest of the request.
func apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			r = r.WithContext(credential.WithKey(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Info().
			Add(logging.Str("method", r.Method)).
			Add(logging.Str("path", r.URL.Path)).
			Add(logging.Int("status", rec.status)).
			Add(logging.Duration(time.Since(start))).
			Msg("request")
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
