// Package api provides the HTTP API server and handlers for the Bookscout application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookscoutapp/bookscout-server/internal/search"
	"github.com/bookscoutapp/bookscout-server/internal/service"
	"github.com/bookscoutapp/bookscout-server/internal/sse"
	"github.com/bookscoutapp/bookscout-server/internal/validation"
)

// Version reported by the health endpoint.
const Version = "0.3.0"

// Services groups the application services the handlers call into.
type Services struct {
	Mirror     *service.MirrorService
	Crawler    *service.CrawlerService
	Aggregator *service.AggregatorService
	Suggested  *service.SuggestedService
	Ranking    *service.RankingService
	WantList   *service.WantListService
	Activity   *service.ActivityService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   Services
	index      *search.CatalogIndex
	sseHandler *sse.Handler
	validator  *validation.Validator
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services Services, index *search.CatalogIndex, sseHandler *sse.Handler, logger *slog.Logger) *Server {
	s := &Server{
		services:   services,
		index:      index,
		sseHandler: sseHandler,
		validator:  validation.New(),
		router:     chi.NewRouter(),
		logger:     logger,
	}

	s.setupMiddleware()

	config := huma.DefaultConfig("Bookscout API", Version)
	config.DocsPath = "/docs"
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerCatalogRoutes()
	s.registerCrawlRoutes()
	s.registerSuggestionRoutes()
	s.registerWantListRoutes()
	s.registerActivityRoutes()
	s.setupStreamRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
}

// setupStreamRoutes mounts the raw SSE endpoints. These bypass huma:
// event streams have no schema to generate and need direct access to
// the response controller.
func (s *Server) setupStreamRoutes() {
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	s.router.Get("/api/v1/crawl/stream", s.handleCrawlStream)
}
