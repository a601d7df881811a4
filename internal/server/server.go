package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/session"
)

// Profiles is the read side of the profile registry.
type Profiles interface {
	Resolve(ctx context.Context, name string) (models.CalibrationProfile, error)
	List(ctx context.Context) ([]models.CalibrationProfile, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	runner     *session.Runner
	profiles   Profiles
	log        *slog.Logger
	apiKey     string
	router     chi.Router
	livePeriod time.Duration
}

// New creates a new Server with all routes configured.
func New(runner *session.Runner, p Profiles, apiKey string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		runner:     runner,
		profiles:   p,
		log:        log,
		apiKey:     apiKey,
		router:     chi.NewRouter(),
		livePeriod: 100 * time.Millisecond,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log, func() string {
		if snap := s.runner.Manager().Snapshot(); snap.Active {
			return snap.SessionID
		}
		return ""
	}))
	s.router.Use(CORS)

	// Read-only endpoints (no auth; tsnet handles access)
	s.router.Get("/api/v1/profiles", s.handleListProfiles)
	s.router.Get("/api/v1/profiles/{name}", s.handleGetProfile)
	s.router.Get("/api/v1/session/state", s.handleSessionState)
	s.router.Get("/api/v1/live", s.handleLive)

	// Session control (API key required)
	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/start", s.handleStartSession)
		r.Post("/frame", s.handleFrame)
		r.Post("/stop", s.handleStopSession)
	})
	s.router.Route("/api/v1/teach", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/start", s.handleTeachStart)
		r.Post("/joints", s.handleTeachJoints)
		r.Post("/capture", s.handleTeachCapture)
		r.Post("/commit", s.handleTeachCommit)
	})
}

// Mount attaches an extra handler, such as the MCP endpoint, behind the API
// key.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Mount(pattern, h)
}
