package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegisid.org/internal/audit"
	"aegisid.org/internal/identity"
	"aegisid.org/internal/obs"
)

// ReadyProbe reports readiness, pinging the database when one is attached.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux      *chi.Mux
	store    identity.Store
	svc      *identity.Service
	resolver *identity.Resolver
	keys     *identity.APIKeyManager
	recorder *audit.Recorder
	probe    ReadyProbe
	version  string
}

// Deps bundles the collaborators the HTTP layer needs.
type Deps struct {
	Store    identity.Store
	Service  *identity.Service
	Resolver *identity.Resolver
	Keys     *identity.APIKeyManager
	Recorder *audit.Recorder
	Probe    ReadyProbe
	Version  string
}

// New wires the router. Route requirements are declared here as plain data
// next to each route; the gate reads them before the handler runs.
func New(deps Deps) *API {
	a := &API{
		mux:      chi.NewRouter(),
		store:    deps.Store,
		svc:      deps.Service,
		resolver: deps.Resolver,
		keys:     deps.Keys,
		recorder: deps.Recorder,
		probe:    deps.Probe,
		version:  deps.Version,
	}

	r := a.mux

	// Liveness, readiness, metrics: unauthenticated operational surface.
	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	loginLimiter := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimit(h, 5, 10).ServeHTTP
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", a.gate(public(), loginLimiter(a.handleLogin)))
			r.Post("/register", a.gate(public(), loginLimiter(a.handleRegister)))
			r.Post("/client-login", a.gate(public(), loginLimiter(a.handleClientLogin)))
			r.Post("/refresh", a.gate(public(), a.handleRefresh))
			r.Post("/logout", a.gate(requires(identity.RoleEmployee, identity.RoleClient), a.handleLogout))
		})

		r.Get("/profile", a.gate(requires(identity.RoleEmployee, identity.RoleClient), a.handleProfile))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", a.gate(requires(identity.RoleAdmin), a.handleUserCreate))
			r.Get("/{id}", a.gate(requires(identity.RoleManager), a.handleUserGet))
			r.Patch("/{id}", a.gate(requires(identity.RoleAdmin), a.handleUserUpdate))
			r.Delete("/{id}", a.gate(requires(identity.RoleAdmin), a.handleUserDelete))
			r.Post("/{id}/roles", a.gate(requires(identity.RoleSuperAdmin), a.handleUserAssignRole))
		})

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", a.gate(requires(identity.RoleAdmin), a.handleClientCreate))
			r.Get("/{id}", a.gate(requires(identity.RoleEmployee, identity.RoleClient), a.handleClientGet))
			r.Patch("/{id}", a.gate(requires(identity.RoleAdmin), a.handleClientUpdate))
			r.Delete("/{id}", a.gate(requires(identity.RoleAdmin), a.handleClientDelete))
			r.Post("/{id}/api-keys", a.gate(requires(identity.RoleAdmin), a.handleAPIKeyGenerate))
			r.Get("/{id}/api-keys", a.gate(requires(identity.RoleAdmin), a.handleAPIKeyList))
			r.Delete("/{id}/api-keys/{keyID}", a.gate(requires(identity.RoleAdmin), a.handleAPIKeyDeactivate))
		})

		r.Route("/roles", func(r chi.Router) {
			r.Get("/", a.gate(requires(identity.RoleAdmin), a.handleRoleList))
			r.Post("/", a.gate(requires(identity.RoleSuperAdmin), a.handleRoleCreate))
		})
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	pattern := func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				return p
			}
		}
		return ""
	}
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = obs.Instrument(h, pattern)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "aegis-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.probe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       principal.ID,
		"email":    principal.Email,
		"kind":     principal.Kind,
		"roles":    principal.Roles,
		"active":   principal.Active,
		"verified": principal.Verified,
	})
}
