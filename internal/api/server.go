package api

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fikircreative/prospector/internal/auth"
	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/telemetry"
)

// Searcher runs a lead search.
type Searcher interface {
	Search(ctx context.Context, req lead.SearchRequest) ([]lead.Lead, error)
}

// Deps are the collaborators the server needs.
type Deps struct {
	Gate     *auth.Gate
	Identity auth.IdentityProvider
	Search   Searcher
	Leads    lead.Repository
	Events   lead.Publisher
	Clock    lead.Clock
	Logger   *zap.Logger

	// SignInURL and PostSignInURL are the callback's redirect targets for
	// refused and successful sign-ins. Empty values use /signin and /.
	SignInURL      string
	PostSignInURL  string
	AllowedOrigins []string
	// RequestTimeout bounds each request; zero disables the timeout.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the search service and lead store.
type Server struct {
	router   chi.Router
	gate     *auth.Gate
	identity auth.IdentityProvider
	search   Searcher
	leads    lead.Repository
	events   lead.Publisher
	clock    lead.Clock
	logger   *zap.Logger

	signInErrorURL string
	postSignInURL  string
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("api: gate is required")
	case deps.Search == nil:
		return nil, errors.New("api: search service is required")
	case deps.Leads == nil:
		return nil, errors.New("api: lead repository is required")
	case deps.Clock == nil:
		return nil, errors.New("api: clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		gate:     deps.Gate,
		identity: deps.Identity,
		search:   deps.Search,
		leads:    deps.Leads,
		events:   deps.Events,
		clock:    deps.Clock,
		logger:   logger,

		signInErrorURL: accessDeniedURL(cmp.Or(deps.SignInURL, defaultSignInURL)),
		postSignInURL:  cmp.Or(deps.PostSignInURL, defaultPostSignInURL),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if deps.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(deps.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/signin", s.signIn)
		r.Get("/callback", s.callback)
		r.Post("/signout", s.signOut)
		r.Get("/session", s.session)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/places/search", s.searchPlaces)
		r.Post("/places/export", s.exportItems)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.listLeads)
			r.Post("/bulk-save", s.bulkSave)
			r.Get("/export", s.exportSaved)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.leads.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "lead store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// authorize writes a 401 and returns false when the caller is not allowed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := s.gate.Authorize(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return auth.Session{}, false
	}
	return sess, true
}
