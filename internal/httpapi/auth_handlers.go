package httpapi

import (
	"errors"
	"net/http"
	"time"

	"aegisid.org/internal/identity"
	"aegisid.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type clientLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func tokenPayload(pair identity.TokenPair, principal identity.Principal) map[string]any {
	return map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int64(time.Until(pair.AccessExpiresAt).Seconds()),
		"principal": map[string]any{
			"id":    principal.ID,
			"email": principal.Email,
			"kind":  principal.Kind,
			"roles": principal.Roles,
		},
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, principal, err := a.svc.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		obs.ObserveLogin("account", "failure")
		handleIdentityError(w, r, err, true)
		return
	}
	obs.ObserveLogin("account", "success")
	writeJSON(w, http.StatusOK, tokenPayload(pair, principal))
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, principal, err := a.svc.Register(r.Context(), identity.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, requestMeta(r))
	if err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			writeError(w, r, http.StatusConflict, "account already exists")
			return
		}
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, tokenPayload(pair, principal))
}

func (a *API) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	var req clientLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, principal, err := a.svc.ClientLogin(r.Context(), req.Identifier, req.Password, requestMeta(r))
	if err != nil {
		obs.ObserveLogin("client", "failure")
		handleIdentityError(w, r, err, true)
		return
	}
	obs.ObserveLogin("client", "success")
	writeJSON(w, http.StatusOK, tokenPayload(pair, principal))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, principal, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleIdentityError(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, tokenPayload(pair, principal))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	a.svc.Logout(r.Context(), principal, requestMeta(r))
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func requestMeta(r *http.Request) identity.RequestMeta {
	return identity.RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
}
