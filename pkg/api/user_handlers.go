package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
)

// UserHandlers serves public profiles and account administration.
type UserHandlers struct {
	service *auth.Service
}

// NewUserHandlers creates user handlers
func NewUserHandlers(service *auth.Service) *UserHandlers {
	return &UserHandlers{service: service}
}

// RegisterRoutes registers profile and admin routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router, g gates) {
	manageUsers := g.authorizer.RequirePermission(rbac.PermManageUsers)

	router.HandleFunc("/users/{username}", h.publicProfile).Methods(http.MethodGet)
	router.Handle("/admin/users", route(http.HandlerFunc(h.listUsers), manageUsers)).Methods(http.MethodGet)
	router.Handle("/admin/users/{id}/role", route(middleware.Authenticated(h.changeRole), g.csrf, manageUsers)).Methods(http.MethodPut)
}

// publicProfile handles GET /api/users/{username}
func (h *UserHandlers) publicProfile(w http.ResponseWriter, r *http.Request) {
	username, err := httputil.ParsePathString(r, "username")
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	profile, err := h.service.PublicProfile(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// listUsers handles GET /api/admin/users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*auth.Account{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": accounts})
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin editor viewer"`
}

// changeRole handles PUT /api/admin/users/{id}/role
func (h *UserHandlers) changeRole(w http.ResponseWriter, r *http.Request, principal *auth.Account) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req changeRoleRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		httputil.WriteValidationError(w, "Invalid role")
		return
	}

	updated, err := h.service.ChangeRole(r.Context(), principal, id, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Role updated successfully",
		"user":    updated,
	})
}
