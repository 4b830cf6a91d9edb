// Package api exposes the PICIS REST surface: the entity and approval
// request resources, the analysis tracker, and the Google OAuth auth
// gateway with its re-authentication flow.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/picis-sec/picis/analysis"
	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/roster"
	"github.com/picis-sec/picis/session"
	"github.com/picis-sec/picis/storage"
)

const (
	defaultSessionTTL = 12 * time.Hour
	// reauthWindow is how long a completed re-authentication stays valid.
	reauthWindow = 5 * time.Minute
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo     storage.Repository
	engine   *approval.Engine
	roster   *roster.Roster
	tracker  *analysis.Tracker
	sessions SessionStore
	activity *session.Manager
	audit    *auditLogger

	oauth          *oauthFlows
	frontendOrigin string
	sessionTTL     time.Duration
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionStore overrides the in-memory session store.
func WithSessionStore(store SessionStore) Option {
	return func(a *API) {
		a.sessions = store
	}
}

// WithSessionManager attaches the activity tracker that gates mutating
// actions behind the action session and read-only mode. Without one,
// mutations are never gated.
func WithSessionManager(m *session.Manager) Option {
	return func(a *API) {
		a.activity = m
	}
}

// WithOAuth configures the Google login and re-authentication flows.
func WithOAuth(cfg OAuthConfig) Option {
	return func(a *API) {
		a.oauth = newOAuthFlows(cfg)
	}
}

// WithFrontendOrigin sets the origin the auth gateway redirects back to.
func WithFrontendOrigin(origin string) Option {
	return func(a *API) {
		a.frontendOrigin = origin
	}
}

// WithSessionTTL overrides the absolute server-side session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.sessionTTL = ttl
	}
}

// New creates a new API instance.
func New(repo storage.Repository, engine *approval.Engine, directory *roster.Roster, tracker *analysis.Tracker, opts ...Option) *API {
	a := &API{
		repo:           repo,
		engine:         engine,
		roster:         directory,
		tracker:        tracker,
		frontendOrigin: "http://localhost:5173",
		sessionTTL:     defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(0)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/auth/google", a.GoogleLogin)
	r.Get("/auth/google/callback", a.GoogleLoginCallback)
	r.Get("/auth/google/reauthenticate", a.GoogleReauthenticate)
	r.Get("/auth/google/reauthenticate/callback", a.GoogleReauthenticateCallback)
	r.Get("/auth/reauthentication-status", a.ReauthenticationStatus)
	r.Post("/auth/reset-reauthentication", a.ResetReauthentication)

	r.Get("/api/user", a.CurrentUser)
	r.Get("/logout", a.Logout)

	r.Route("/entidades", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.ListEntidades)
		r.Post("/", a.CreateEntidad)
		r.Get("/{id}", a.GetEntidad)
		r.Put("/{id}", a.UpdateEntidad)
		r.Delete("/{id}", a.DeleteEntidad)
	})

	r.Route("/solicitudes", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.ListSolicitudes)
		r.Post("/", a.CreateSolicitud)
		r.Get("/{id}", a.GetSolicitud)
		r.Put("/{id}", a.UpdateSolicitud)
		r.Delete("/{id}", a.DeleteSolicitud)
		r.Post("/{id}/approve", a.ApproveSolicitud)
		r.Post("/{id}/reject", a.RejectSolicitud)
	})

	r.Route("/analyses", func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Get("/", a.ListAnalyses)
		r.Post("/", a.CreateAnalysis)
		r.Get("/{id}", a.GetAnalysis)
		r.Get("/{id}/report", a.GetAnalysisReport)
		r.Get("/{id}/comments", a.ListComments)
		r.Post("/{id}/comments", a.AddComment)
		r.Put("/{id}/comments/{commentID}", a.EditComment)
		r.Delete("/{id}/comments/{commentID}", a.DeleteComment)
	})

	return r
}

// guard runs fn only when the action session permits the named mutating
// action. Read actions always pass.
func (a *API) guard(action string, fn func() error) error {
	if a.activity == nil {
		return fn()
	}
	return a.activity.Do(action, fn)
}
