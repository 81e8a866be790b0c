package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"price-advisor/internal/cache"
	"price-advisor/internal/config"
	"price-advisor/internal/logging"
	"price-advisor/internal/metrics"
	"price-advisor/internal/service"
	"price-advisor/internal/storage"
)

// Pinger reports backend connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the dashboard API over HTTP.
type Server struct {
	cfg      *config.Config
	router   *mux.Router
	httpSrv  *http.Server
	sales    storage.SaleStore
	analyses storage.AnalysisStore
	analyzer *service.Analyzer
	cache    *cache.AnalysisCache
	metrics  *metrics.Registry
	db       Pinger
	logger   zerolog.Logger
}

// New wires the API server. db may be nil when no database is configured;
// health checks then report it as unavailable.
func New(cfg *config.Config, sales storage.SaleStore, analyses storage.AnalysisStore, analyzer *service.Analyzer, analysisCache *cache.AnalysisCache, reg *metrics.Registry, db Pinger, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		sales:    sales,
		analyses: analyses,
		analyzer: analyzer,
		cache:    analysisCache,
		metrics:  reg,
		db:       db,
		logger:   logging.Component(logger, "server"),
	}

	s.routes()

	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.instrumentMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// preflight requests must reach the CORS middleware, which answers them
	s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.ownerMiddleware)

	api.HandleFunc("/sales/upload", s.handleUploadSales).Methods(http.MethodPost)
	api.HandleFunc("/sales", s.handleCreateSale).Methods(http.MethodPost)
	api.HandleFunc("/sales", s.handleListSales).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id:[0-9]+}", s.handleDeleteSale).Methods(http.MethodDelete)
	api.HandleFunc("/analyses/run", s.handleRunAnalyses).Methods(http.MethodPost)
	api.HandleFunc("/analyses", s.handleListAnalyses).Methods(http.MethodGet)
	api.HandleFunc("/analyses/{product}", s.handleGetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodPost)
	api.HandleFunc("/export/analyses.csv", s.handleExportAnalysesCSV).Methods(http.MethodGet)
	api.HandleFunc("/products/{product}/chart.png", s.handleProductChart).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info().Str("listen", s.cfg.Server.Listen).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
