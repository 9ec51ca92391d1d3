package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskfold.org/internal/auth"
	"taskfold.org/internal/notify"
	"taskfold.org/internal/obs"
	"taskfold.org/internal/session"
)

// ReadyProbe checks downstream readiness (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer: the auth endpoints plus the operational surface.
// Business controllers mount behind RequirePermission; they are not part of
// this service.
type API struct {
	router *chi.Mux

	creds    *auth.Credentials
	tokens   *auth.Tokens
	resolver *auth.Resolver
	sessions *session.Manager
	notifier notify.Notifier

	cookieName   string
	cookieSecure bool
	baseURL      string

	readyProbe ReadyProbe
	version    string
}

// Options wires the API's collaborators and policy knobs.
type Options struct {
	Credentials *auth.Credentials
	Tokens      *auth.Tokens
	Resolver    *auth.Resolver
	Sessions    *session.Manager
	Notifier    notify.Notifier

	ReadyProbe ReadyProbe
	Version    string

	CookieName   string
	CookieSecure bool
	BaseURL      string

	RateLimitBurst     int
	RateLimitPerSecond int
}

func New(opts Options) (*API, error) {
	if opts.Credentials == nil || opts.Tokens == nil || opts.Resolver == nil || opts.Sessions == nil {
		return nil, errors.New("credentials, tokens, resolver and sessions are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	if opts.CookieName == "" {
		opts.CookieName = "taskfold_session"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 2
	}

	a := &API{
		router:       chi.NewRouter(),
		creds:        opts.Credentials,
		tokens:       opts.Tokens,
		resolver:     opts.Resolver,
		sessions:     opts.Sessions,
		notifier:     opts.Notifier,
		cookieName:   opts.CookieName,
		cookieSecure: opts.CookieSecure,
		baseURL:      opts.BaseURL,
		readyProbe:   opts.ReadyProbe,
		version:      opts.Version,
	}

	limit := func(next http.Handler) http.Handler {
		return RateLimit(next, opts.RateLimitBurst, opts.RateLimitPerSecond)
	}
	maxBody := func(next http.Handler) http.Handler {
		return MaxBodyBytes(next, 1<<20)
	}

	r := a.router
	r.Use(RequestID, LoggingJSON, SecurityHeaders, maxBody, a.withSession)

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.ready)
	r.Get("/v1/info", a.info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Get("/login", a.handle(a.showLogin))
	r.With(limit, a.requireCsrf).Post("/login", a.handle(a.login))

	// Logout is accepted on GET as well: existing sign-out links are plain
	// anchors.
	r.Get("/logout", a.handle(a.logout))
	r.With(a.requireCsrf).Post("/logout", a.handle(a.logout))

	r.Get("/register", a.handle(a.showRegister))
	r.With(limit, a.requireCsrf).Post("/register", a.handle(a.register))

	r.Get("/activate", a.handle(a.activate))

	r.With(limit, a.requireCsrf).Post("/forgot-password", a.handle(a.forgotPassword))

	r.Get("/reset-password", a.handle(a.showResetPassword))
	r.With(limit, a.requireCsrf).Post("/reset-password", a.handle(a.resetPassword))

	r.With(a.requireAuthenticated).Get("/dashboard", a.handle(a.dashboard))

	return a, nil
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

// Router exposes the mux so business controllers can mount their routes
// behind RequirePermission.
func (a *API) Router() chi.Router {
	return a.router
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskfold-auth",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "taskfold-auth",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
