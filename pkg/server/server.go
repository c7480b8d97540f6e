package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/hnpipe/internal/warehouse"
	"github.com/elonfeng/hnpipe/pkg/asset"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Runner materializes assets on demand.
type Runner interface {
	Run(ctx context.Context, selection []string) (*asset.Result, error)
}

// Catalog is the read side of the warehouse the API exposes.
type Catalog interface {
	warehouse.Reader
	ListTables(ctx context.Context) ([]warehouse.TableInfo, error)
}

// Server provides the HTTP API.
type Server struct {
	runner   Runner
	catalog  Catalog
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	port     int
	router   chi.Router
}

// New creates a new HTTP server.
func New(runner Runner, catalog Catalog, gatherer prometheus.Gatherer, port int, logger zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	s := &Server{
		runner:   runner,
		catalog:  catalog,
		gatherer: gatherer,
		logger:   logger.With().Str("component", "server").Logger(),
		port:     port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/assets", s.handleAssets)
		r.Get("/tables", s.handleTables)
		r.Get("/tables/{name}", s.handleTable)
		r.Post("/materialize", s.handleMaterialize)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets := asset.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  assets,
		"count": len(assets),
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	infos, err := s.catalog.ListTables(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if infos == nil {
		infos = []warehouse.TableInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.catalog.ReadTable(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, warehouse.ErrTableNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  tbl,
		"count": tbl.Len(),
	})
}

func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	selection, err := asset.ParseSelection(r.URL.Query().Get("select"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.runner.Run(r.Context(), selection)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "run": res})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": res})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
