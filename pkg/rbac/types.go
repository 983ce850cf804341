package rbac

import (
	"sort"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceWhiskey Resource = "whiskey"
	ResourceUsers   Resource = "users"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// The closed set of permissions.
var (
	PermCreateWhiskey = Permission{Resource: ResourceWhiskey, Action: ActionCreate}
	PermReadWhiskey   = Permission{Resource: ResourceWhiskey, Action: ActionRead}
	PermUpdateWhiskey = Permission{Resource: ResourceWhiskey, Action: ActionUpdate}
	PermDeleteWhiskey = Permission{Resource: ResourceWhiskey, Action: ActionDelete}
	PermManageUsers   = Permission{Resource: ResourceUsers, Action: ActionManage}
)

var allPermissions = []Permission{
	PermCreateWhiskey,
	PermReadWhiskey,
	PermUpdateWhiskey,
	PermDeleteWhiskey,
	PermManageUsers,
}

// Permissions returns every defined permission.
func Permissions() []Permission {
	return append([]Permission(nil), allPermissions...)
}

// rolePermissions is the fixed role table.
var rolePermissions = map[auth.Role]map[Permission]bool{
	auth.RoleAdmin: {
		PermCreateWhiskey: true,
		PermReadWhiskey:   true,
		PermUpdateWhiskey: true,
		PermDeleteWhiskey: true,
		PermManageUsers:   true,
	},
	auth.RoleEditor: {
		PermCreateWhiskey: true,
		PermReadWhiskey:   true,
		PermUpdateWhiskey: true,
	},
	auth.RoleViewer: {
		PermReadWhiskey: true,
	},
}

// HasPermission reports whether role grants p. Unknown roles grant nothing.
func HasPermission(role auth.Role, p Permission) bool {
	return rolePermissions[role][p]
}

// PermissionsFor lists the permissions granted to role, sorted by name.
func PermissionsFor(role auth.Role) []string {
	perms := make([]string, 0, len(rolePermissions[role]))
	for _, p := range Permissions() {
		if HasPermission(role, p) {
			perms = append(perms, p.String())
		}
	}
	sort.Strings(perms)
	return perms
}
