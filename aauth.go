// Package aauth is an authorization-resolution engine combining three access
// control models: organization-based grants over a materialized-path hierarchy
// (OrBAC), role/permission assignment (RBAC), and attribute-based row
// filtering (ABAC). A Service owns the stores and the cross-session cache; a
// Session is one resolved (user, role) authorization context answering
// Can(permission, args...) and producing row filters for governed entities.
package aauth

import (
	"context"
	"time"
)

// Status of a role or an organization scope.
type Status string

const (
	StatusActive  Status = "active"
	StatusPassive Status = "passive"
)

// OrganizationScope is a hierarchy tier definition (e.g. "Region", "Branch").
// Level is an ordering weight: lower levels sit closer to the root. Names are
// unique.
type OrganizationScope struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Level  int    `json:"level" yaml:"level"`
	Status Status `json:"status" yaml:"status"`
}

// OrganizationNode is a node of the organization tree. Path encodes the full
// ancestry (see path.go); ParentID is nil for root nodes. EntityType/EntityID
// optionally bind the node to one external governed entity; at most one node
// exists per (EntityType, EntityID) pair.
type OrganizationNode struct {
	ID         int64  `json:"id" yaml:"id"`
	ScopeID    int64  `json:"scope_id" yaml:"scope_id"`
	Name       string `json:"name" yaml:"name"`
	EntityType string `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	EntityID   int64  `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Path       string `json:"path" yaml:"path"`
	ParentID   *int64 `json:"parent_id" yaml:"parent_id"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Role groups permissions. ScopeID nil means a system (global) role; non-nil
// means an organization role usable only through hierarchy grants. Tag
// optionally partitions roles per deployment surface; a role with an empty
// tag is visible under every tag. (Name, ScopeID) is unique.
type Role struct {
	ID      int64  `json:"id" yaml:"id"`
	ScopeID *int64 `json:"scope_id" yaml:"scope_id"`
	Name    string `json:"name" yaml:"name"`
	Status  Status `json:"status" yaml:"status"`
	Tag     string `json:"tag,omitempty" yaml:"tag,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsSystem reports whether the role is global rather than organization-scoped.
func (r *Role) IsSystem() bool { return r.ScopeID == nil }

// RolePermission grants one permission key to a role, optionally constrained
// by ordered named parameters (see Params). (RoleID, Permission) is unique.
type RolePermission struct {
	ID         int64  `json:"id" yaml:"id"`
	RoleID     int64  `json:"role_id" yaml:"role_id"`
	Permission string `json:"permission" yaml:"permission"`
	Parameters Params `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Assignment links a user to a role, and for organization roles to one
// grant-root node. NodeID is nil for system roles. A user commonly has many
// assignment rows: several roles, or several grant-roots for one role.
type Assignment struct {
	UserID int64  `json:"user_id" yaml:"user_id"`
	RoleID int64  `json:"role_id" yaml:"role_id"`
	NodeID *int64 `json:"node_id" yaml:"node_id"`
}

// AbacRule stores one validated rule tree per (role, entity type). Rows of
// the governed entity type are visible to the role only where the tree
// matches.
type AbacRule struct {
	RoleID     int64  `json:"role_id" yaml:"role_id"`
	EntityType string `json:"entity_type" yaml:"entity_type"`
	Rule       *Rule  `json:"rule" yaml:"rule"`
}

// OrganizationStore persists scopes and nodes. Lookups return (nil, nil) when
// the id does not resolve; the service layer maps absence to the typed
// reference errors. WithinTx runs fn against a transactional view of the
// store: either every write inside fn is persisted or none is.
type OrganizationStore interface {
	CreateScope(ctx context.Context, scope *OrganizationScope) error
	UpdateScope(ctx context.Context, scope *OrganizationScope) error
	DeleteScope(ctx context.Context, id int64) error
	GetScope(ctx context.Context, id int64) (*OrganizationScope, error)

	// CreateNode inserts the node as given (including a placeholder path)
	// and assigns node.ID.
	CreateNode(ctx context.Context, node *OrganizationNode) error
	UpdateNode(ctx context.Context, node *OrganizationNode) error
	DeleteNode(ctx context.Context, id int64) error
	GetNode(ctx context.Context, id int64) (*OrganizationNode, error)
	NodeByEntity(ctx context.Context, entityType string, entityID int64) (*OrganizationNode, error)
	ChildrenOf(ctx context.Context, parentID int64) ([]*OrganizationNode, error)

	// SelectNodes returns the nodes matching the compiled filter, optionally
	// restricted to one bound entity type.
	SelectNodes(ctx context.Context, filter *Filter, entityType string) ([]*OrganizationNode, error)

	WithinTx(ctx context.Context, fn func(ctx context.Context, tx OrganizationStore) error) error
}

// RoleStore persists roles and their permission grants.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role) error
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListRoles(ctx context.Context, ids []int64) ([]*Role, error)

	Permissions(ctx context.Context, roleID int64) ([]*RolePermission, error)
	AttachPermission(ctx context.Context, roleID int64, permission string, params Params) error
	DetachPermission(ctx context.Context, roleID int64, permission string) error
	DetachAllPermissions(ctx context.Context, roleID int64) error
}

// AssignmentStore persists user/role/node assignment rows.
type AssignmentStore interface {
	// Assign upserts the row; assigning twice is not an error.
	Assign(ctx context.Context, a Assignment) error
	Unassign(ctx context.Context, a Assignment) error
	// UnassignNode removes every assignment row granted through the node.
	UnassignNode(ctx context.Context, nodeID int64) error
	// UnassignRole removes every assignment row of the role.
	UnassignRole(ctx context.Context, roleID int64) error

	HasRole(ctx context.Context, userID, roleID int64) (bool, error)
	GrantRoots(ctx context.Context, userID, roleID int64) ([]int64, error)
	RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	UsersForRole(ctx context.Context, roleID int64) ([]int64, error)
}

// RuleStore persists ABAC rule trees, one per (role, entity type). Rule
// returns (nil, nil) when no tree is stored for the pair.
type RuleStore interface {
	SaveRule(ctx context.Context, roleID int64, entityType string, rule *Rule) error
	Rule(ctx context.Context, roleID int64, entityType string) (*Rule, error)
	Rules(ctx context.Context, roleID int64) (map[string]*Rule, error)
	DeleteRule(ctx context.Context, roleID int64, entityType string) error
}

// UserDirectory is the identity collaborator: it answers existence and the
// configured super-admin flag column for a user id. The core never reads any
// other user attribute.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Flag(ctx context.Context, userID int64, column string) (bool, error)
}
