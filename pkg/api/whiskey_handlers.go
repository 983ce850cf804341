package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/whiskey"
)

// WhiskeyHandlers serves the collection routes.
type WhiskeyHandlers struct {
	store whiskey.Store
	audit audit.Logger
}

// NewWhiskeyHandlers creates whiskey handlers. Mutations are recorded to
// auditLogger.
func NewWhiskeyHandlers(store whiskey.Store, auditLogger audit.Logger) *WhiskeyHandlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &WhiskeyHandlers{store: store, audit: auditLogger}
}

// RegisterRoutes registers the RBAC-gated whiskey routes
func (h *WhiskeyHandlers) RegisterRoutes(router *mux.Router, g gates) {
	az := g.authorizer

	router.Handle("/whiskeys", route(http.HandlerFunc(h.list),
		az.RequirePermission(rbac.PermReadWhiskey))).Methods(http.MethodGet)
	router.Handle("/whiskeys/{id}", route(http.HandlerFunc(h.get),
		az.RequirePermission(rbac.PermReadWhiskey))).Methods(http.MethodGet)
	router.Handle("/whiskeys", route(middleware.Authenticated(h.create),
		g.csrf, az.RequirePermission(rbac.PermCreateWhiskey))).Methods(http.MethodPost)
	router.Handle("/whiskeys/{id}", route(http.HandlerFunc(h.update),
		g.csrf, az.RequirePermission(rbac.PermUpdateWhiskey))).Methods(http.MethodPut)
	router.Handle("/whiskeys/{id}", route(http.HandlerFunc(h.delete),
		g.csrf, az.RequireRole(auth.RoleAdmin), az.RequirePermission(rbac.PermDeleteWhiskey))).Methods(http.MethodDelete)
}

func (h *WhiskeyHandlers) record(r *http.Request, eventType audit.EventType, id int64, name string) {
	event := audit.NewEvent(r.Context(), eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeWhiskey
	event.ResourceID = strconv.FormatInt(id, 10)
	event.Message = name
	if err := h.audit.Log(r.Context(), event); err != nil {
		requestLogger(r).WithError(err).Warn("failed to record audit event")
	}
}

func (h *WhiskeyHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, whiskey.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Whiskey not found")
		return
	}
	writeError(w, r, err)
}

// list handles GET /api/whiskeys
func (h *WhiskeyHandlers) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []*whiskey.Whiskey{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"whiskeys": items})
}

// get handles GET /api/whiskeys/{id}
func (h *WhiskeyHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// create handles POST /api/whiskeys
func (h *WhiskeyHandlers) create(w http.ResponseWriter, r *http.Request, principal *auth.Account) {
	var in whiskey.Input
	if !httputil.DecodeAndValidate(w, r, &in) {
		return
	}
	item, err := h.store.Create(r.Context(), in, principal.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.record(r, audit.EventTypeDataWhiskeyCreate, item.ID, item.Name)
	httputil.WriteCreated(w, item)
}

// update handles PUT /api/whiskeys/{id}
func (h *WhiskeyHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var in whiskey.Input
	if !httputil.DecodeAndValidate(w, r, &in) {
		return
	}
	item, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.record(r, audit.EventTypeDataWhiskeyUpdate, item.ID, item.Name)
	httputil.WriteSuccess(w, item)
}

// delete handles DELETE /api/whiskeys/{id}
func (h *WhiskeyHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.record(r, audit.EventTypeDataWhiskeyDelete, id, "")
	httputil.WriteMessage(w, "Whiskey deleted successfully")
}
