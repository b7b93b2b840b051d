package httpapi

import (
	"net/http"

	"aegisid.org/internal/identity"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

func roleView(role identity.Role) map[string]any {
	return map[string]any{
		"id":          role.ID,
		"name":        role.Name,
		"code":        role.Code,
		"description": role.Description,
		"default":     role.Default,
		"level":       role.Code.Level(),
		"created_at":  role.CreatedAt,
	}
}

func (a *API) handleRoleList(w http.ResponseWriter, r *http.Request) {
	roles, err := a.store.Roles(r.Context()).List(r.Context())
	if err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	views := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView(role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (a *API) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "name and code are required")
		return
	}
	role := &identity.Role{
		Name:        req.Name,
		Code:        identity.RoleCode(req.Code),
		Description: req.Description,
		Default:     req.Default,
	}
	if err := a.store.Roles(r.Context()).Create(r.Context(), role); err != nil {
		handleIdentityError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, roleView(*role))
}
