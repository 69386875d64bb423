package domain

import "time"

// Role is a tenant-scoped role. BasedOn only seeds permissions when the
// role is created; it is not an inheritance link.
type Role struct {
	ID          string    `yaml:"-"`
	Key         string    `yaml:"-"`
	Description string    `yaml:"description,omitempty"`
	BasedOn     string    `yaml:"-"`
	CreatedBy   string    `yaml:"createdBy,omitempty"`
	CreatedAt   time.Time `yaml:"createdDate,omitempty"`
	UpdatedBy   string    `yaml:"updatedBy,omitempty"`
	UpdatedAt   time.Time `yaml:"updatedDate,omitempty"`
}

// Permission grants (or explicitly withholds) a privilege of an application
// to a role. Within a role, (AppName, PrivilegeKey) identifies it.
type Permission struct {
	ID                string `yaml:"-"`
	AppName           string `yaml:"-"`
	RoleKey           string `yaml:"-"`
	PrivilegeKey      string `yaml:"privilegeKey"`
	Disabled          bool   `yaml:"disabled"`
	ReactionStrategy  string `yaml:"reactionStrategy,omitempty"`
	EnvCondition      string `yaml:"envCondition,omitempty"`
	ResourceCondition string `yaml:"resourceCondition,omitempty"`
	Description       string `yaml:"description,omitempty"`
}

// PermissionKey is the merge identity of a permission within a role.
type PermissionKey struct {
	AppName      string
	PrivilegeKey string
}

// Key returns the merge identity.
func (p Permission) Key() PermissionKey {
	return PermissionKey{AppName: p.AppName, PrivilegeKey: p.PrivilegeKey}
}

// Privilege is a catalog entry published by a resource application.
type Privilege struct {
	AppName     string `yaml:"-"`
	Key         string `yaml:"key"`
	Description string `yaml:"description,omitempty"`
}

// PermissionSet is the full permission state of a tenant:
// application -> role -> permissions.
type PermissionSet map[string]map[string][]Permission

// Add appends p under its app and role.
func (s PermissionSet) Add(p Permission) {
	roles, ok := s[p.AppName]
	if !ok {
		roles = make(map[string][]Permission)
		s[p.AppName] = roles
	}
	roles[p.RoleKey] = append(roles[p.RoleKey], p)
}

// ForRole collects the permissions of roleKey across applications.
func (s PermissionSet) ForRole(roleKey string) []Permission {
	var out []Permission
	for _, roles := range s {
		out = append(out, roles[roleKey]...)
	}
	return out
}

// Normalize stamps AppName and RoleKey from the map position, which YAML
// documents leave implicit.
func (s PermissionSet) Normalize() {
	for app, roles := range s {
		for role, perms := range roles {
			for i := range perms {
				perms[i].AppName = app
				perms[i].RoleKey = role
			}
		}
	}
}

// PrivilegeCatalog lists privileges per application.
type PrivilegeCatalog map[string][]Privilege

// Normalize stamps AppName from the map position.
func (c PrivilegeCatalog) Normalize() {
	for app, privs := range c {
		for i := range privs {
			privs[i].AppName = app
		}
	}
}
