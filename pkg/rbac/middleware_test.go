package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/audit"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(ctx context.Context, e *audit.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func asPrincipal(role auth.Role) *http.Request {
	req := httptest.NewRequest("DELETE", "/api/whiskeys/1", nil)
	acct := &auth.Account{ID: 4, Username: "dana", Role: role}
	return req.WithContext(contextkeys.WithPrincipal(req.Context(), acct))
}

func newAuthorizer(t *testing.T) (*Authorizer, *recordingAudit) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	rec := &recordingAudit{}
	return NewAuthorizer(rec, logger), rec
}

func TestRequirePermission(t *testing.T) {
	authz, _ := newAuthorizer(t)

	tests := []struct {
		role auth.Role
		perm Permission
		want int
	}{
		{auth.RoleViewer, PermReadWhiskey, http.StatusOK},
		{auth.RoleViewer, PermCreateWhiskey, http.StatusForbidden},
		{auth.RoleEditor, PermUpdateWhiskey, http.StatusOK},
		{auth.RoleEditor, PermDeleteWhiskey, http.StatusForbidden},
		{auth.RoleEditor, PermManageUsers, http.StatusForbidden},
		{auth.RoleAdmin, PermManageUsers, http.StatusOK},
		{auth.RoleAdmin, PermDeleteWhiskey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+"/"+tt.perm.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			authz.RequirePermission(tt.perm)(okHandler()).ServeHTTP(rec, asPrincipal(tt.role))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequirePermission_DenialPayload(t *testing.T) {
	authz, audits := newAuthorizer(t)

	rec := httptest.NewRecorder()
	authz.RequirePermission(PermCreateWhiskey)(okHandler()).ServeHTTP(rec, asPrincipal(auth.RoleViewer))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "whiskey:create", body["requiredPermission"])
	assert.Equal(t, "viewer", body["currentRole"])
	assert.Equal(t, "FORBIDDEN", body["code"])

	require.Len(t, audits.events, 1)
	assert.Equal(t, audit.EventTypeAuthzAccessDenied, audits.events[0].EventType)
	assert.Equal(t, audit.EventStatusDenied, audits.events[0].Status)
}

func TestRequirePermission_Anonymous(t *testing.T) {
	authz, _ := newAuthorizer(t)
	rec := httptest.NewRecorder()
	authz.RequirePermission(PermReadWhiskey)(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	authz, _ := newAuthorizer(t)
	gate := authz.RequireRole(auth.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, asPrincipal(auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, asPrincipal(auth.RoleEditor))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{"admin"}, body["requiredRoles"])
	assert.Equal(t, "editor", body["currentRole"])
}

func TestRequireRole_MultipleRoles(t *testing.T) {
	authz, _ := newAuthorizer(t)
	gate := authz.RequireRole(auth.RoleEditor, auth.RoleAdmin)(okHandler())

	for role, want := range map[auth.Role]int{
		auth.RoleViewer: http.StatusForbidden,
		auth.RoleEditor: http.StatusOK,
		auth.RoleAdmin:  http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, asPrincipal(role))
		assert.Equal(t, want, rec.Code, role.String())
	}
}

func TestRoleAndPermissionCompose(t *testing.T) {
	authz, _ := newAuthorizer(t)
	gate := authz.RequireRole(auth.RoleAdmin)(authz.RequirePermission(PermDeleteWhiskey)(okHandler()))

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, asPrincipal(auth.RoleEditor))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, asPrincipal(auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}
