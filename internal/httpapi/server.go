package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/johnrirwin/feedmix/internal/auth"
	"github.com/johnrirwin/feedmix/internal/database"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/metrics"
	"github.com/johnrirwin/feedmix/internal/models"
	"github.com/johnrirwin/feedmix/internal/normalizer"
	"github.com/johnrirwin/feedmix/internal/sources"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// FeedService builds the aggregated feed of an account.
type FeedService interface {
	FeedFor(ctx context.Context, username string, page models.PageParams) (*models.FeedResponse, error)
}

// AccountService manages accounts and follows.
type AccountService interface {
	CreateAccount(ctx context.Context, params models.CreateAccountParams) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	Follow(ctx context.Context, follower, followee string) error
	Unfollow(ctx context.Context, follower, followee string) error
}

// SourceService manages the sources an account subscribes to.
type SourceService interface {
	AddSource(ctx context.Context, accountID string, src models.Source) error
	ListSources(ctx context.Context, accountID string) ([]models.Source, error)
	RemoveSource(ctx context.Context, accountID string, sourceID uint64) error
}

// PostService stores and lists native posts.
type PostService interface {
	PutPost(ctx context.Context, author models.Account, params models.CreatePostParams) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
}

// SourceRegistrar turns user input into a source.
type SourceRegistrar interface {
	Register(ctx context.Context, params models.AddSourceParams) (models.Source, error)
}

type Server struct {
	feeds          FeedService
	accounts       AccountService
	sources        SourceService
	posts          PostService
	registry       SourceRegistrar
	sanitizer      normalizer.Sanitizer
	authSvc        *auth.Service
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	server         *http.Server
}

// New builds the API server. Native post bodies go through sanitizer before
// they are stored; a nil sanitizer selects the feed entry policy.
func New(feeds FeedService, accounts AccountService, sourceSvc SourceService, posts PostService, registry SourceRegistrar, sanitizer normalizer.Sanitizer, authSvc *auth.Service, authMiddleware *auth.Middleware, logger *logging.Logger) *Server {
	if sanitizer == nil {
		sanitizer = normalizer.NewBasicSanitizer()
	}
	return &Server{
		feeds:          feeds,
		accounts:       accounts,
		sources:        sourceSvc,
		posts:          posts,
		registry:       registry,
		sanitizer:      sanitizer,
		authSvc:        authSvc,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	requireAuth := s.authMiddleware.RequireAuth

	// Feed routes
	mux.HandleFunc("GET /api/feed", s.corsMiddleware(requireAuth(s.handleGetFeed)))

	// Source routes
	mux.HandleFunc("GET /api/sources", s.corsMiddleware(requireAuth(s.handleListSources)))
	mux.HandleFunc("POST /api/sources", s.corsMiddleware(requireAuth(s.handleAddSource)))
	mux.HandleFunc("DELETE /api/sources/{id}", s.corsMiddleware(requireAuth(s.handleRemoveSource)))

	// Account and social routes
	mux.HandleFunc("POST /api/accounts", s.corsMiddleware(s.handleCreateAccount))
	mux.HandleFunc("POST /api/follow/{username}", s.corsMiddleware(requireAuth(s.handleFollow)))
	mux.HandleFunc("DELETE /api/follow/{username}", s.corsMiddleware(requireAuth(s.handleUnfollow)))

	// Native post routes
	mux.HandleFunc("POST /api/posts", s.corsMiddleware(requireAuth(s.handleCreatePost)))
	mux.HandleFunc("GET /api/users/{username}/posts", s.corsMiddleware(s.handleUserPosts))

	mux.HandleFunc("OPTIONS /api/", s.corsMiddleware(func(http.ResponseWriter, *http.Request) {}))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Aggregation alone may take up to its own deadline.
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// currentAccount loads the account named by the request's token.
func (s *Server) currentAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	username := auth.GetUsername(r.Context())
	account, err := s.accounts.GetAccountByUsername(r.Context(), username)
	if err != nil {
		s.writeStoreError(w, err, "failed to load account")
		return nil, false
	}
	return account, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", logging.WithField("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// writeStoreError maps domain errors to HTTP statuses. Anything unrecognised
// is logged and reported as fallback with a 500.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, "invalid_input", validationErr.Message)
	case errors.Is(err, sources.ErrInvalidURL), errors.Is(err, sources.ErrInvalidSourceType):
		s.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, database.ErrSelfFollow):
		s.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, sources.ErrChannelNotFound), errors.Is(err, database.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, database.ErrAlreadyExists):
		s.writeError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		s.logger.Error(fallback, logging.WithField("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func parsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
