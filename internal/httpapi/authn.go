package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegisid.org/internal/audit"
	"aegisid.org/internal/identity"
	"aegisid.org/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer "
	apiKeyHeader = "X-Api-Key"

	auditBodyLimit = 1 << 20
)

// routeAccess is the explicit requirement a route declares: plain data read
// by the gate before the handler runs, no runtime introspection.
type routeAccess struct {
	Public bool
	Roles  []identity.RoleCode
}

func public() routeAccess { return routeAccess{Public: true} }

func requires(roles ...identity.RoleCode) routeAccess {
	return routeAccess{Roles: roles}
}

// gate enforces authentication and authorization for one route, then
// dispatches a best-effort audit record for mutating calls that completed
// successfully. Public routes skip credential resolution entirely.
func (a *API) gate(access routeAccess, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !access.Public {
			cred, err := credentialFromRequest(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, err.Error())
				return
			}
			principal, err := a.resolver.Resolve(ctx, cred)
			if cred.APIKey != "" && cred.Bearer == "" {
				result := "success"
				if err != nil {
					result = "failure"
				}
				obs.ObserveAPIKeyValidation(result)
			}
			if err != nil {
				handleIdentityError(w, r, err, false)
				return
			}
			if err := identity.Authorize(principal, access.Roles); err != nil {
				handleIdentityError(w, r, err, false)
				return
			}
			ctx = identity.ContextWithPrincipal(ctx, principal)
			r = r.WithContext(ctx)
		}

		entity := audit.EntityFromPath(r.URL.Path)
		action, audited := audit.ActionFor(entity, r.Method)
		if !audited || a.recorder == nil {
			next(w, r)
			return
		}

		// Buffer the body so sanitized changes can be captured after the
		// handler succeeds.
		var captured []byte
		if r.Body != nil {
			captured, _ = io.ReadAll(io.LimitReader(r.Body, auditBodyLimit))
			r.Body = io.NopCloser(bytes.NewReader(captured))
		}

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)

		if sw.code < http.StatusOK || sw.code >= http.StatusMultipleChoices {
			return
		}

		rec := identity.AuditRecord{
			Action:    action,
			Entity:    entity,
			Changes:   sanitizedChanges(captured),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		}
		if id := chi.URLParam(r, "id"); id != "" {
			rec.EntityID = &id
		}
		if principal, ok := identity.PrincipalFromContext(r.Context()); ok {
			rec.Actor(principal)
		}
		a.recorder.Record(r.Context(), rec)
	}
}

func sanitizedChanges(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	return audit.Sanitize(parsed)
}

// credentialFromRequest extracts whichever of the two mutually exclusive
// schemes the request carries.
func credentialFromRequest(r *http.Request) (identity.Credential, error) {
	meta := identity.RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()}

	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
			return identity.Credential{}, errInvalidScheme
		}
		token := strings.TrimSpace(header[len(bearerScheme):])
		if token == "" {
			return identity.Credential{}, errMissingCredential
		}
		return identity.Credential{Bearer: token, Meta: meta}, nil
	}

	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return identity.Credential{APIKey: key, Meta: meta}, nil
	}

	return identity.Credential{}, errMissingCredential
}

var (
	errMissingCredential = errors.New("missing credentials")
	errInvalidScheme     = errors.New("invalid authorization scheme")
)
