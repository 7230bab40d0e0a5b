// Package server provides the HTTP server and routing for Stockfolio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dmarques/stockfolio/internal/config"
	"github.com/dmarques/stockfolio/internal/database"
	"github.com/dmarques/stockfolio/internal/modules/accounts"
	accounthandlers "github.com/dmarques/stockfolio/internal/modules/accounts/handlers"
	"github.com/dmarques/stockfolio/internal/modules/ledger"
	ledgerhandlers "github.com/dmarques/stockfolio/internal/modules/ledger/handlers"
	"github.com/dmarques/stockfolio/internal/modules/marketclock"
	markethandlers "github.com/dmarques/stockfolio/internal/modules/marketclock/handlers"
	"github.com/dmarques/stockfolio/internal/modules/marketdata"
	stockhandlers "github.com/dmarques/stockfolio/internal/modules/marketdata/handlers"
	"github.com/dmarques/stockfolio/internal/modules/portfolio"
	portfoliohandlers "github.com/dmarques/stockfolio/internal/modules/portfolio/handlers"
	"github.com/dmarques/stockfolio/internal/modules/recommendations"
	recommendationhandlers "github.com/dmarques/stockfolio/internal/modules/recommendations/handlers"
)

// Config holds everything the server needs to route requests.
type Config struct {
	Log      zerolog.Logger
	Cfg      *config.Config
	LedgerDB *database.DB
	CacheDB  *database.DB

	Ledger          *ledger.Service
	Accounts        *accounts.Service
	MarketData      *marketdata.Service
	Portfolio       *portfolio.Service
	Recommendations *recommendations.Service
	MarketClock     *marketclock.Service
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates the HTTP server and wires all module routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(s.loggingMiddleware)

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	systemHandlers := NewSystemHandlers(s.log, s.cfg.LedgerDB, s.cfg.CacheDB)

	s.router.Get("/health", systemHandlers.HandleLiveness)

	s.router.Route("/api", func(r chi.Router) {
		accounthandlers.NewAccountHandlers(s.cfg.Accounts, s.log).RegisterRoutes(r)
		ledgerhandlers.NewLedgerHandlers(s.cfg.Ledger, s.log).RegisterRoutes(r)
		portfoliohandlers.NewPortfolioHandlers(s.cfg.Portfolio, s.log).RegisterRoutes(r)
		stockhandlers.NewStockHandlers(s.cfg.MarketData, s.log).RegisterRoutes(r)
		markethandlers.NewMarketHandlers(s.cfg.MarketClock, s.log).RegisterRoutes(r)
		recommendationhandlers.NewRecommendationHandlers(s.cfg.Recommendations, s.log).RegisterRoutes(r)

		r.Get("/system/health", systemHandlers.HandleHealth)
	})
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
