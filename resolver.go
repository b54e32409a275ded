package aauth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/aauth/logger"
)

// Service owns the stores, the cross-session cache and the configuration. It
// is the write side of the system (role, permission, assignment and rule
// administration, with synchronous cache invalidation) and the factory for
// Sessions, the read side.
type Service struct {
	orgStore    OrganizationStore
	roles       RoleStore
	assignments AssignmentStore
	rules       RuleStore
	users       UserDirectory

	orgs     *OrganizationService
	bindings *BindingRegistry
	cache    Cache
	cfg      Config
	log      logger.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger installs a structured logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) error {
		s.log = l
		return nil
	}
}

// WithCache installs the cross-session cache backend and enables caching.
func WithCache(c Cache) Option {
	return func(s *Service) error {
		s.cache = c
		s.cfg.Cache.Enabled = true
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) error {
		s.cfg = cfg
		return nil
	}
}

// WithBindings installs a pre-populated entity binding registry.
func WithBindings(r *BindingRegistry) Option {
	return func(s *Service) error {
		s.bindings = r
		return nil
	}
}

// New wires a Service from its stores.
func New(org OrganizationStore, roles RoleStore, assignments AssignmentStore, rules RuleStore, users UserDirectory, opts ...Option) (*Service, error) {
	s := &Service{
		orgStore:    org,
		roles:       roles,
		assignments: assignments,
		rules:       rules,
		users:       users,
		cfg:         DefaultConfig(),
		log:         logger.NewNullLogger(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.bindings == nil {
		s.bindings = NewBindingRegistry()
	}
	if s.cfg.Cache.Enabled && s.cache == nil {
		c, err := NewRistrettoCache(s.cfg.Cache.RistrettoNumCounters, s.cfg.Cache.RistrettoMaxCost, s.cfg.Cache.RistrettoBufferItems)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	s.orgs = NewOrganizationService(org, s.bindings, s.assignments, s.log)
	return s, nil
}

// Organizations exposes the hierarchy store service.
func (s *Service) Organizations() *OrganizationService { return s.orgs }

// Bindings exposes the entity binding registry.
func (s *Service) Bindings() *BindingRegistry { return s.bindings }

func (s *Service) cachingOn() bool {
	return s.cfg.Cache.Enabled && s.cache != nil
}

// invalidateRole purges the role's cached permissions and rule trees. Called
// synchronously on every write touching the role, before the write returns.
func (s *Service) invalidateRole(ctx context.Context, roleID int64) {
	if !s.cachingOn() {
		return
	}
	s.cache.Delete(ctx, rolePermissionsKey(s.cfg.Cache.Prefix, roleID))
	s.cache.Delete(ctx, roleRulesKey(s.cfg.Cache.Prefix, roleID))
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if !s.cachingOn() {
		return
	}
	s.cache.Delete(ctx, switchableRolesKey(s.cfg.Cache.Prefix, userID))
}

// invalidateRoleUsers purges the cached switchable-roles list of every user
// holding the role. Role records feed those lists, so role writes must forget
// them alongside the role's own keys.
func (s *Service) invalidateRoleUsers(ctx context.Context, roleID int64) {
	if !s.cachingOn() {
		return
	}
	users, err := s.assignments.UsersForRole(ctx, roleID)
	if err != nil {
		s.log.Error("switchable-roles invalidation failed", "role_id", roleID, "error", err)
		return
	}
	for _, userID := range users {
		s.cache.Delete(ctx, switchableRolesKey(s.cfg.Cache.Prefix, userID))
	}
}

// ----------------------------------------------------------------------------
// Role and permission administration
// ----------------------------------------------------------------------------

// CreateRole inserts a role. Organization roles must reference an existing
// scope.
func (s *Service) CreateRole(ctx context.Context, role *Role) error {
	if role.Name == "" {
		return fmt.Errorf("%w: empty role name", ErrInvalidRole)
	}
	if role.Status == "" {
		role.Status = StatusActive
	}
	if role.ScopeID != nil {
		if _, err := s.orgs.GetScope(ctx, *role.ScopeID); err != nil {
			return err
		}
	}
	if err := s.roles.CreateRole(ctx, role); err != nil {
		return err
	}
	s.log.Info("role created", "role_id", role.ID, "name", role.Name)
	return nil
}

// UpdateRole rewrites a role record.
func (s *Service) UpdateRole(ctx context.Context, role *Role) error {
	if _, err := s.getRole(ctx, role.ID); err != nil {
		return err
	}
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return err
	}
	s.invalidateRole(ctx, role.ID)
	s.invalidateRoleUsers(ctx, role.ID)
	return nil
}

// DeleteRole removes a role together with its permission grants, rule trees
// and assignment rows, so nothing keeps referencing the dead id.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	users, err := s.assignments.UsersForRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.roles.DetachAllPermissions(ctx, roleID); err != nil {
		return err
	}
	rules, err := s.rules.Rules(ctx, roleID)
	if err != nil {
		return err
	}
	for entityType := range rules {
		if err := s.rules.DeleteRule(ctx, roleID, entityType); err != nil {
			return err
		}
	}
	if err := s.assignments.UnassignRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.roles.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	for _, userID := range users {
		s.invalidateUser(ctx, userID)
	}
	s.log.Info("role deleted", "role_id", roleID)
	return nil
}

// ActivateRole marks the role active.
func (s *Service) ActivateRole(ctx context.Context, roleID int64) error {
	return s.setRoleStatus(ctx, roleID, StatusActive)
}

// DeactivateRole marks the role passive.
func (s *Service) DeactivateRole(ctx context.Context, roleID int64) error {
	return s.setRoleStatus(ctx, roleID, StatusPassive)
}

func (s *Service) setRoleStatus(ctx context.Context, roleID int64, status Status) error {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}
	role.Status = status
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	s.invalidateRoleUsers(ctx, roleID)
	return nil
}

func (s *Service) getRole(ctx context.Context, roleID int64) (*Role, error) {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrInvalidRole
	}
	return role, nil
}

// AttachPermission grants a permission key to a role, optionally with ordered
// parametric constraints. Attaching an already-granted permission is a no-op.
func (s *Service) AttachPermission(ctx context.Context, roleID int64, permission string, params Params) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.roles.AttachPermission(ctx, roleID, permission, params); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// DetachPermission revokes one permission key from a role.
func (s *Service) DetachPermission(ctx context.Context, roleID int64, permission string) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.roles.DetachPermission(ctx, roleID, permission); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// DetachAllPermissions revokes every permission of a role.
func (s *Service) DetachAllPermissions(ctx context.Context, roleID int64) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.roles.DetachAllPermissions(ctx, roleID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// SyncPermissions replaces the role's grants with exactly the given set.
func (s *Service) SyncPermissions(ctx context.Context, roleID int64, permissions []*RolePermission) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.roles.DetachAllPermissions(ctx, roleID); err != nil {
		return err
	}
	for _, p := range permissions {
		if err := s.roles.AttachPermission(ctx, roleID, p.Permission, p.Parameters); err != nil {
			return err
		}
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// ----------------------------------------------------------------------------
// Assignments
// ----------------------------------------------------------------------------

// AttachSystemRole assigns a global role to a user. The role must not be
// organization-scoped.
func (s *Service) AttachSystemRole(ctx context.Context, roleID, userID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.IsSystem() {
		return fmt.Errorf("%w: role %d is organization-scoped", ErrInvalidRole, roleID)
	}
	if err := s.assignments.Assign(ctx, Assignment{UserID: userID, RoleID: roleID}); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// DetachSystemRole removes a global role assignment.
func (s *Service) DetachSystemRole(ctx context.Context, roleID, userID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.IsSystem() {
		return fmt.Errorf("%w: role %d is organization-scoped", ErrInvalidRole, roleID)
	}
	if err := s.assignments.Unassign(ctx, Assignment{UserID: userID, RoleID: roleID}); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// AttachOrganizationRole grants an organization role to a user at a grant-root
// node. The node's scope must match the role's scope.
func (s *Service) AttachOrganizationRole(ctx context.Context, nodeID, roleID, userID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem() {
		return fmt.Errorf("%w: role %d is not organization-scoped", ErrInvalidRole, roleID)
	}
	node, err := s.orgs.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.ScopeID != *role.ScopeID {
		return fmt.Errorf("%w: node scope %d, role scope %d", ErrScopeMismatch, node.ScopeID, *role.ScopeID)
	}
	if err := s.assignments.Assign(ctx, Assignment{UserID: userID, RoleID: roleID, NodeID: &nodeID}); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// DetachOrganizationRole removes one grant-root assignment.
func (s *Service) DetachOrganizationRole(ctx context.Context, nodeID, roleID, userID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.orgs.GetNode(ctx, nodeID); err != nil {
		return err
	}
	if err := s.assignments.Unassign(ctx, Assignment{UserID: userID, RoleID: roleID, NodeID: &nodeID}); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidUser
	}
	return nil
}

// ----------------------------------------------------------------------------
// ABAC rule administration
// ----------------------------------------------------------------------------

// SaveABACRule validates and stores the rule tree for (role, entity type),
// replacing any previous tree. Malformed trees are rejected here, never at
// query time.
func (s *Service) SaveABACRule(ctx context.Context, roleID int64, entityType string, rule *Rule) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := ValidateRule(rule, s.cfg.ABAC.MaxRuleDepth); err != nil {
		return err
	}
	if err := s.rules.SaveRule(ctx, roleID, entityType, rule); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// DeleteABACRule removes the rule tree for (role, entity type).
func (s *Service) DeleteABACRule(ctx context.Context, roleID int64, entityType string) error {
	if _, err := s.getRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.rules.DeleteRule(ctx, roleID, entityType); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	return nil
}

// ----------------------------------------------------------------------------
// Cached loads
// ----------------------------------------------------------------------------

func (s *Service) loadPermissions(ctx context.Context, roleID int64) (map[string]Params, []*RolePermission, error) {
	key := rolePermissionsKey(s.cfg.Cache.Prefix, roleID)
	if s.cachingOn() {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var rows []*RolePermission
			if err := json.Unmarshal(raw, &rows); err == nil {
				return permissionMap(rows), rows, nil
			}
		}
	}
	rows, err := s.roles.Permissions(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	if s.cachingOn() {
		if raw, err := json.Marshal(rows); err == nil {
			s.cache.Set(ctx, key, raw, s.cfg.Cache.TTL())
		}
	}
	return permissionMap(rows), rows, nil
}

func permissionMap(rows []*RolePermission) map[string]Params {
	out := make(map[string]Params, len(rows))
	for _, row := range rows {
		out[row.Permission] = row.Parameters
	}
	return out
}

func (s *Service) loadRules(ctx context.Context, roleID int64) (map[string]*Rule, error) {
	key := roleRulesKey(s.cfg.Cache.Prefix, roleID)
	if s.cachingOn() {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var rules map[string]*Rule
			if err := json.Unmarshal(raw, &rules); err == nil {
				return rules, nil
			}
		}
	}
	rules, err := s.rules.Rules(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if s.cachingOn() {
		if raw, err := json.Marshal(rules); err == nil {
			s.cache.Set(ctx, key, raw, s.cfg.Cache.TTL())
		}
	}
	return rules, nil
}

// SwitchableRoles lists the distinct roles a user can resolve a session with,
// derived from the assignment rows. Cached cross-session.
func (s *Service) SwitchableRoles(ctx context.Context, userID int64) ([]*Role, error) {
	key := switchableRolesKey(s.cfg.Cache.Prefix, userID)
	if s.cachingOn() {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var roles []*Role
			if err := json.Unmarshal(raw, &roles); err == nil {
				return roles, nil
			}
		}
	}
	ids, err := s.assignments.RoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	if s.cachingOn() {
		if raw, err := json.Marshal(roles); err == nil {
			s.cache.Set(ctx, key, raw, s.cfg.Cache.TTL())
		}
	}
	return roles, nil
}

// ----------------------------------------------------------------------------
// Session resolution
// ----------------------------------------------------------------------------

// Resolve builds the authorization context for one (user, active role) pair.
// It fails with ErrAuthenticationMissing, ErrMissingRole or
// ErrUserHasNoAssignedRole before any context is loaded; a returned Session
// is always resolved.
func (s *Service) Resolve(ctx context.Context, userID, roleID int64) (*Session, error) {
	return s.ResolveWithTag(ctx, userID, roleID, "")
}

// ResolveWithTag resolves a session under a deployment partition tag. A role
// carrying a tag is only visible under that tag; a role with no tag is
// visible under every tag.
func (s *Service) ResolveWithTag(ctx context.Context, userID, roleID int64, tag string) (*Session, error) {
	if userID == 0 {
		return nil, ErrAuthenticationMissing
	}
	if roleID == 0 {
		return nil, ErrMissingRole
	}
	assigned, err := s.assignments.HasRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, ErrUserHasNoAssignedRole
	}
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrMissingRole
	}
	if tag != "" && role.Tag != "" && role.Tag != tag {
		return nil, ErrMissingRole
	}
	sess := &Session{svc: s, userID: userID, role: role}
	if err := sess.load(ctx); err != nil {
		return nil, err
	}
	s.log.Debug("session resolved", "user_id", userID, "role_id", roleID)
	return sess, nil
}

// Session is one resolved authorization context: the permissions, ABAC rule
// trees, grant-roots and super-admin flag of a (user, active role) pair. A
// Session belongs to one request; it is not safe to share across goroutines.
type Session struct {
	svc    *Service
	userID int64
	role   *Role

	loaded      bool
	permissions map[string]Params
	permRows    []*RolePermission
	rules       map[string]*Rule
	grantRoots  []int64
	superAdmin  bool
	canMemo     map[string]bool
}

func (se *Session) load(ctx context.Context) error {
	perms, rows, err := se.svc.loadPermissions(ctx, se.role.ID)
	if err != nil {
		return err
	}
	rules, err := se.svc.loadRules(ctx, se.role.ID)
	if err != nil {
		return err
	}
	roots, err := se.svc.assignments.GrantRoots(ctx, se.userID, se.role.ID)
	if err != nil {
		return err
	}
	super := false
	if se.svc.cfg.SuperAdmin.Enabled {
		super, err = se.svc.users.Flag(ctx, se.userID, se.svc.cfg.SuperAdmin.Column)
		if err != nil {
			return err
		}
	}
	se.permissions = perms
	se.permRows = rows
	se.rules = rules
	se.grantRoots = roots
	se.superAdmin = super
	se.canMemo = make(map[string]bool)
	se.loaded = true
	return nil
}

func (se *Session) ensure(ctx context.Context) error {
	if se.loaded {
		return nil
	}
	return se.load(ctx)
}

// ClearContext discards the resolved context and the Can memo. The next read
// re-executes the loads, picking up any invalidated cache state.
func (se *Session) ClearContext() {
	se.loaded = false
	se.permissions = nil
	se.permRows = nil
	se.rules = nil
	se.grantRoots = nil
	se.superAdmin = false
	se.canMemo = nil
}

// UserID returns the session's user.
func (se *Session) UserID() int64 { return se.userID }

// CurrentRole returns the session's active role.
func (se *Session) CurrentRole() *Role { return se.role }

// IsSuperAdmin reports the resolved super-admin flag.
func (se *Session) IsSuperAdmin(ctx context.Context) (bool, error) {
	if err := se.ensure(ctx); err != nil {
		return false, err
	}
	return se.superAdmin, nil
}

// Can answers a permission check against the resolved context. An absent
// permission is a plain false, never an error; parametric grants validate the
// positional arguments against their stored constraints in declaration
// order. Results are memoized per (permission, args) until ClearContext.
func (se *Session) Can(ctx context.Context, permission string, args ...any) (bool, error) {
	if err := se.ensure(ctx); err != nil {
		return false, err
	}
	if se.superAdmin {
		return true, nil
	}
	memoKey := permission
	if len(args) > 0 {
		memoKey = fmt.Sprintf("%s|%v", permission, args)
	}
	if got, ok := se.canMemo[memoKey]; ok {
		return got, nil
	}
	result := se.evaluate(permission, args)
	se.canMemo[memoKey] = result
	return result, nil
}

func (se *Session) evaluate(permission string, args []any) bool {
	params, ok := se.permissions[permission]
	if !ok {
		return false
	}
	if len(args) == 0 || len(params) == 0 {
		return true
	}
	return params.validate(args)
}

// PassOrAbort turns a failed Can into an AuthorizationError for the transport
// boundary to surface. It never wraps store failures into denial.
func (se *Session) PassOrAbort(ctx context.Context, permission, message string) error {
	ok, err := se.Can(ctx, permission)
	if err != nil {
		return err
	}
	if !ok {
		return &AuthorizationError{Permission: permission, Message: message}
	}
	return nil
}

// Permissions lists the permission keys granted to the active role.
func (se *Session) Permissions(ctx context.Context) ([]string, error) {
	if err := se.ensure(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(se.permRows))
	for _, row := range se.permRows {
		out = append(out, row.Permission)
	}
	return out, nil
}

// SystemPermissions lists the role's permissions when it is a system role.
func (se *Session) SystemPermissions(ctx context.Context) ([]string, error) {
	if !se.role.IsSystem() {
		return nil, nil
	}
	return se.Permissions(ctx)
}

// OrganizationPermissions lists the role's permissions when it is an
// organization role.
func (se *Session) OrganizationPermissions(ctx context.Context) ([]string, error) {
	if se.role.IsSystem() {
		return nil, nil
	}
	return se.Permissions(ctx)
}

// ABACRules returns the role's stored rule tree for an entity type, nil when
// none is stored.
func (se *Session) ABACRules(ctx context.Context, entityType string) (*Rule, error) {
	if err := se.ensure(ctx); err != nil {
		return nil, err
	}
	return se.rules[entityType], nil
}

// ABACFilter compiles the role's rule tree for an entity type into a row
// filter, nil when no tree is stored.
func (se *Session) ABACFilter(ctx context.Context, entityType string) (*Filter, error) {
	rule, err := se.ABACRules(ctx, entityType)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}
	return Compile(rule), nil
}

// OrganizationNodeIDs returns the session's grant-root node ids.
func (se *Session) OrganizationNodeIDs(ctx context.Context) ([]int64, error) {
	if err := se.ensure(ctx); err != nil {
		return nil, err
	}
	return se.grantRoots, nil
}

// OrganizationNodes returns every node the session may see: the union of the
// grant-root subtrees, roots included only with includeSelf, optionally
// restricted to nodes bound to one entity type. A session with no grant-roots
// sees nothing.
func (se *Session) OrganizationNodes(ctx context.Context, includeSelf bool, entityType string) ([]*OrganizationNode, error) {
	if err := se.ensure(ctx); err != nil {
		return nil, err
	}
	return se.svc.orgs.AccessibleDescendants(ctx, se.grantRoots, includeSelf, entityType)
}

// OrganizationNode fetches one node, failing with ErrInvalidOrganizationNode
// when the session is not authorized to see it.
func (se *Session) OrganizationNode(ctx context.Context, nodeID int64, entityType string) (*OrganizationNode, error) {
	nodes, err := se.OrganizationNodes(ctx, true, entityType)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		if node.ID == nodeID {
			return node, nil
		}
	}
	return nil, ErrInvalidOrganizationNode
}

// HierarchyFilter builds the session's hierarchical predicate over the
// organization node table.
func (se *Session) HierarchyFilter(ctx context.Context, includeSelf bool) (*Filter, error) {
	if err := se.ensure(ctx); err != nil {
		return nil, err
	}
	return se.svc.orgs.AccessibleFilter(ctx, se.grantRoots, includeSelf)
}

// EntityFilter composes the row filter for a hierarchy-governed entity type:
// the ids of the entities bound to accessible nodes, AND-combined with the
// role's compiled ABAC filter when one is stored. Both filters apply; neither
// replaces the other.
func (se *Session) EntityFilter(ctx context.Context, entityType string, includeSelf bool) (*Filter, error) {
	nodes, err := se.OrganizationNodes(ctx, includeSelf, entityType)
	if err != nil {
		return nil, err
	}
	idFilter := &Filter{Join: ConnOr}
	for _, node := range nodes {
		idFilter.Add(Condition{Column: "id", Op: OpEq, Value: node.EntityID})
	}
	abacFilter, err := se.ABACFilter(ctx, entityType)
	if err != nil {
		return nil, err
	}
	if abacFilter == nil {
		return idFilter, nil
	}
	return AndFilters(idFilter, abacFilter), nil
}

// Descendant reports whether childID lies in the subtree of rootID. No
// permission check; a pure hierarchy question.
func (se *Session) Descendant(ctx context.Context, rootID, childID int64) (bool, error) {
	return se.svc.orgs.IsDescendantOrSelf(ctx, rootID, childID)
}

// SwitchableRoles lists the roles the session's user could switch to.
func (se *Session) SwitchableRoles(ctx context.Context) ([]*Role, error) {
	return se.svc.SwitchableRoles(ctx, se.userID)
}
