package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegisid.org/internal/identity"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type updateUserRequest struct {
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Active    *bool   `json:"active"`
	Verified  *bool   `json:"verified"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func userView(u *identity.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"phone":         u.Phone,
		"active":        u.Active,
		"verified":      u.Verified,
		"roles":         u.RoleCodes(),
		"last_login_at": u.LastLoginAt,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid password")
		return
	}
	user := &identity.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Active:       true,
	}
	if err := a.store.Users(r.Context()).Create(r.Context(), user); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, userView(user))
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.Users(r.Context()).Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	roles, err := a.store.Roles(r.Context()).ListForUser(r.Context(), user.ID)
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	user.Roles = roles
	writeJSON(w, http.StatusOK, userView(user))
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users := a.store.Users(r.Context())
	user, err := users.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	if req.Password != nil {
		hash, err := identity.HashPassword(*req.Password)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid password")
			return
		}
		user.PasswordHash = hash
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Verified != nil {
		user.Verified = *req.Verified
	}
	if err := users.Save(r.Context(), user); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, userView(user))
}

func (a *API) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Users(r.Context()).SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleUserAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoleID == "" {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	userID := chi.URLParam(r, "id")
	if _, err := a.store.Users(r.Context()).Find(r.Context(), userID); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	if _, err := a.store.Roles(r.Context()).Find(r.Context(), req.RoleID); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	if err := a.store.Roles(r.Context()).Assign(r.Context(), userID, req.RoleID); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "assigned"})
}
