package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
)

// AuditSearcher queries stored audit events.
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, error)
}

// AuditHandlers serves the admin audit log views.
type AuditHandlers struct {
	store AuditSearcher
}

// NewAuditHandlers creates audit handlers
func NewAuditHandlers(store AuditSearcher) *AuditHandlers {
	return &AuditHandlers{store: store}
}

// RegisterRoutes registers audit log routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router, g gates) {
	manageUsers := g.authorizer.RequirePermission(rbac.PermManageUsers)

	router.Handle("/admin/audit/events", route(http.HandlerFunc(h.listEvents), manageUsers)).Methods(http.MethodGet)
	router.Handle("/admin/audit/export", route(http.HandlerFunc(h.exportEvents), manageUsers)).Methods(http.MethodGet)
}

// listEvents handles GET /api/admin/audit/events
func (h *AuditHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*audit.AuditEvent{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// exportEvents handles GET /api/admin/audit/export?format=json|csv|ndjson
func (h *AuditHandlers) exportEvents(w http.ResponseWriter, r *http.Request) {
	format, err := audit.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := audit.Export(events, format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parseAuditFilter reads accountId, username, eventType (repeatable), status,
// ip, from, to (RFC 3339), limit and offset.
func parseAuditFilter(r *http.Request) (audit.SearchFilter, error) {
	q := r.URL.Query()
	filter := audit.SearchFilter{
		Username:  q.Get("username"),
		Status:    audit.EventStatus(q.Get("status")),
		IPAddress: q.Get("ip"),
		Limit:     100,
	}

	for _, et := range q["eventType"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(et))
	}

	if v := q.Get("accountId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("accountId must be an integer")
		}
		filter.AccountID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("from must be an RFC 3339 timestamp")
		}
		filter.StartTime = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("to must be an RFC 3339 timestamp")
		}
		filter.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > audit.MaxSearchLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", audit.MaxSearchLimit)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
