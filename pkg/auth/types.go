package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role uint8

const (
	roleUnknown Role = iota
	RoleViewer
	RoleEditor
	RoleAdmin
)

// DefaultRole is assigned to newly registered accounts.
const DefaultRole = RoleViewer

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleAdmin:  "admin",
}

// Roles returns every valid role, lowest privilege first.
func Roles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole converts a stored or submitted role name into a Role.
func ParseRole(s string) (Role, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	names := make([]string, 0, len(roleNames))
	for _, role := range Roles() {
		if role.String() == needle {
			return role, nil
		}
		names = append(names, role.String())
	}
	return roleUnknown, fmt.Errorf("unknown role %q, want one of %s", s, strings.Join(names, ", "))
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", r)
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Account is a registered user of the collection app.
type Account struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"emailVerified"`

	VerificationCode          string     `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	VerificationCodeAttempts  int        `json:"-"`

	PasswordResetToken     string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfilePhoto    string `json:"profilePhoto,omitempty"`
	IsProfilePublic bool   `json:"isProfilePublic"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of an account shown to anonymous visitors.
type PublicProfile struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	MemberSince  time.Time `json:"memberSince"`
}

// PublicProfile projects the account onto its public fields.
func (a *Account) PublicProfile() PublicProfile {
	return PublicProfile{
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		ProfilePhoto: a.ProfilePhoto,
		MemberSince:  a.CreatedAt,
	}
}

// NewAccount carries the fields needed to persist a freshly registered account.
type NewAccount struct {
	Username                  string
	Email                     string
	PasswordHash              string
	Role                      Role
	FirstName                 string
	LastName                  string
	VerificationCode          string
	VerificationCodeExpiresAt time.Time
}

// ProfileFields holds passthrough profile edits. Nil pointers are left unchanged.
type ProfileFields struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Empty reports whether no field is set.
func (p ProfileFields) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil
}
