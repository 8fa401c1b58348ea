// Package web serves the profile gate and the paged anime catalog over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/anilist-browser/pkg/client"
	"github.com/Sternrassler/anilist-browser/pkg/media"
	"github.com/Sternrassler/anilist-browser/pkg/metrics"
	"github.com/Sternrassler/anilist-browser/pkg/profile"
)

// Profile storage backends.
const (
	StorageCookie = "cookie"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// PageFetcher loads one catalog page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int) (*client.Page, error)
}

// Options configures a Server.
type Options struct {
	Fetcher PageFetcher

	// Redis is optional; /ready pings it and the redis profile storage
	// requires it.
	Redis *redis.Client

	// ProfileStorage is one of StorageCookie, StorageRedis or StorageMemory.
	ProfileStorage string
	ProfileTTL     time.Duration

	// PerPage is used when the request names no valid perPage.
	PerPage int

	// RequestTimeout bounds one catalog request including its retries.
	RequestTimeout time.Duration

	// SecureCookies marks every cookie Secure.
	SecureCookies bool
}

// Server is the HTTP front end.
type Server struct {
	router *chi.Mux
	opts   Options
	logger zerolog.Logger

	// memory holds per-session profile storage for StorageMemory.
	memory *memorySessions
}

// NewServer creates a server with its middleware and routes.
func NewServer(opts Options) *Server {
	if opts.ProfileStorage == "" {
		opts.ProfileStorage = StorageCookie
	}
	if opts.PerPage == 0 {
		opts.PerPage = media.DefaultPerPage
	}
	opts.PerPage = media.ClampPerPage(opts.PerPage)

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: log.With().Str("component", "web").Logger(),
	}

	if opts.ProfileStorage == StorageMemory {
		s.memory = newMemorySessions(opts.ProfileTTL)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Close releases the memory session store, if any.
func (s *Server) Close() {
	if s.memory != nil {
		s.memory.close()
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(withSession(s.opts.SecureCookies))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Post("/", s.handleSaveProfile)
			r.Patch("/", s.handleUpdateProfile)
			r.Delete("/", s.handleDeleteProfile)
		})

		r.Get("/media", s.handleMedia)
	})
}

// profileStore returns the profile store for the visitor of r.
func (s *Server) profileStore(w http.ResponseWriter, r *http.Request) *profile.Store {
	switch s.opts.ProfileStorage {
	case StorageRedis:
		return profile.NewStore(profile.NewRedisStorage(s.opts.Redis, sessionID(r.Context()), s.opts.ProfileTTL))
	case StorageMemory:
		return profile.NewStore(s.memory.get(sessionID(r.Context())))
	default:
		cs := profile.NewCookieStorage(w, r)
		cs.Secure = s.opts.SecureCookies
		if s.opts.ProfileTTL > 0 {
			cs.MaxAge = s.opts.ProfileTTL
		}
		return profile.NewStore(cs)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
