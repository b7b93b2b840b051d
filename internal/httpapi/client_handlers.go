package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegisid.org/internal/identity"
)

type createClientRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type updateClientRequest struct {
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	Active    *bool   `json:"active"`
}

type generateAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// clientView is the client shape safe to return: no password hash, no
// verification token material.
func clientView(c *identity.Client) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"phone":      c.Phone,
		"address":    c.Address,
		"active":     c.Active,
		"verified":   c.Verified,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

func apiKeyView(k identity.APIKey) map[string]any {
	return map[string]any{
		"id":           k.ID,
		"name":         k.Name,
		"last_four":    k.LastFour,
		"active":       k.Active,
		"expires_at":   k.ExpiresAt,
		"last_used_at": k.LastUsedAt,
		"created_at":   k.CreatedAt,
	}
}

func (a *API) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	// The raw password is hashed here, once, at the creation boundary.
	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid password")
		return
	}
	client := &identity.Client{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Address:      req.Address,
		Active:       true,
	}
	if err := a.store.Clients(r.Context()).Create(r.Context(), client); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/clients/%s", client.ID))
	writeJSON(w, http.StatusCreated, clientView(client))
}

func (a *API) handleClientGet(w http.ResponseWriter, r *http.Request) {
	client, err := a.store.Clients(r.Context()).Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, clientView(client))
}

func (a *API) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	clients := a.store.Clients(r.Context())
	client, err := clients.Find(r.Context(), chi.URLParam(r, "id"))
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
		client.PasswordHash = hash
	}
	if req.FirstName != nil {
		client.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		client.LastName = *req.LastName
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Address != nil {
		client.Address = *req.Address
	}
	if req.Active != nil {
		client.Active = *req.Active
	}
	if err := clients.Save(r.Context(), client); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, clientView(client))
}

func (a *API) handleClientDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Clients(r.Context()).SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleAPIKeyGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	generated, err := a.keys.Generate(r.Context(), chi.URLParam(r, "id"), req.Name, req.ExpiresAt)
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	// The plaintext key appears in this response only; it is never
	// retrievable again.
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         generated.ID,
		"key":        generated.Key,
		"name":       generated.Name,
		"last_four":  generated.LastFour,
		"expires_at": generated.ExpiresAt,
		"created_at": generated.CreatedAt,
	})
}

func (a *API) handleAPIKeyList(w http.ResponseWriter, r *http.Request) {
	keys, err := a.store.APIKeys(r.Context()).ListByClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	views := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		views = append(views, apiKeyView(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": views})
}

func (a *API) handleAPIKeyDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := a.store.APIKeys(r.Context()).Deactivate(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}
