// Package api provides the HTTP API server and handlers for the catalog.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/catalog-server/internal/http/response"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// authPathPrefix covers the routes behind the auth rate limiter.
const authPathPrefix = "/api/v1/auth/"

// Services groups the business logic used by the handlers.
type Services struct {
	Auth       *service.AuthService
	Authors    *service.AuthorService
	Categories *service.CategoryService
	Books      *service.BookService
	Reviews    *service.ReviewService
	Users      *service.UserService
	Reconcile  *service.ReconcileService
}

// IndexStatus reports the size of the search index for health checks.
type IndexStatus interface {
	Count() (uint64, error)
}

// Options tunes the HTTP layer.
type Options struct {
	CORSOrigins []string
	// AuthRateLimiter throttles /auth routes per client. Nil uses 20 per minute
	// with a burst of 10.
	AuthRateLimiter *RateLimiter
	// Index is the search index, nil when search is disabled.
	Index IndexStatus
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog         store.Catalog
	services        *Services
	index           IndexStatus
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(catalog store.Catalog, services *Services, opts Options, logger *slog.Logger) *Server {
	limiter := opts.AuthRateLimiter
	if limiter == nil {
		limiter = NewRateLimiter(20, time.Minute, 10)
	}

	s := &Server{
		catalog:         catalog,
		services:        services,
		index:           opts.Index,
		router:          chi.NewRouter(),
		logger:          logger,
		authRateLimiter: limiter,
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Catalog API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer(logger))

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler(logger)

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerAuthorRoutes()
	s.registerCategoryRoutes()
	s.registerBookRoutes()
	s.registerReviewRoutes()
	s.registerUserRoutes()
	s.registerAdminRoutes()

	s.router.NotFound(response.NotFound)
	s.router.MethodNotAllowed(response.MethodNotAllowed)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RateLimitMiddleware(s.authRateLimiter, authPathPrefix, s.logger))
}
