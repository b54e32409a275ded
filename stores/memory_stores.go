package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/oarkflow/aauth"
)

// MemoryOrganizationStore keeps the organization tree in process memory.
// WithinTx runs against a deep clone and swaps it in only on success, so the
// all-or-nothing contract of subtree moves and deletes holds for real.
type MemoryOrganizationStore struct {
	mu       sync.RWMutex
	scopeSeq int64
	nodeSeq  int64
	scopes   map[int64]*aauth.OrganizationScope
	nodes    map[int64]*aauth.OrganizationNode
	inTx     bool
}

func NewMemoryOrganizationStore() *MemoryOrganizationStore {
	return &MemoryOrganizationStore{
		scopes: make(map[int64]*aauth.OrganizationScope),
		nodes:  make(map[int64]*aauth.OrganizationNode),
	}
}

func cloneScope(s *aauth.OrganizationScope) *aauth.OrganizationScope {
	if s == nil {
		return nil
	}
	dup := *s
	return &dup
}

func cloneNode(n *aauth.OrganizationNode) *aauth.OrganizationNode {
	if n == nil {
		return nil
	}
	dup := *n
	if n.ParentID != nil {
		p := *n.ParentID
		dup.ParentID = &p
	}
	return &dup
}

func (s *MemoryOrganizationStore) CreateScope(_ context.Context, scope *aauth.OrganizationScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.scopes {
		if existing.Name == scope.Name {
			return fmt.Errorf("scope name already exists: %s", scope.Name)
		}
	}
	s.scopeSeq++
	scope.ID = s.scopeSeq
	s.scopes[scope.ID] = cloneScope(scope)
	return nil
}

func (s *MemoryOrganizationStore) UpdateScope(_ context.Context, scope *aauth.OrganizationScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[scope.ID]; !ok {
		return fmt.Errorf("scope not found: %d", scope.ID)
	}
	s.scopes[scope.ID] = cloneScope(scope)
	return nil
}

func (s *MemoryOrganizationStore) DeleteScope(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, id)
	return nil
}

func (s *MemoryOrganizationStore) GetScope(_ context.Context, id int64) (*aauth.OrganizationScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneScope(s.scopes[id]), nil
}

func (s *MemoryOrganizationStore) CreateNode(_ context.Context, node *aauth.OrganizationNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeSeq++
	node.ID = s.nodeSeq
	s.nodes[node.ID] = cloneNode(node)
	return nil
}

func (s *MemoryOrganizationStore) UpdateNode(_ context.Context, node *aauth.OrganizationNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[node.ID]; !ok {
		return fmt.Errorf("node not found: %d", node.ID)
	}
	s.nodes[node.ID] = cloneNode(node)
	return nil
}

func (s *MemoryOrganizationStore) DeleteNode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *MemoryOrganizationStore) GetNode(_ context.Context, id int64) (*aauth.OrganizationNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNode(s.nodes[id]), nil
}

func (s *MemoryOrganizationStore) NodeByEntity(_ context.Context, entityType string, entityID int64) (*aauth.OrganizationNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, node := range s.nodes {
		if node.EntityType == entityType && node.EntityID == entityID {
			return cloneNode(node), nil
		}
	}
	return nil, nil
}

func (s *MemoryOrganizationStore) ChildrenOf(_ context.Context, parentID int64) ([]*aauth.OrganizationNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*aauth.OrganizationNode, 0)
	for _, node := range s.nodes {
		if node.ParentID != nil && *node.ParentID == parentID {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryOrganizationStore) SelectNodes(_ context.Context, filter *aauth.Filter, entityType string) ([]*aauth.OrganizationNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*aauth.OrganizationNode, 0)
	for _, node := range s.nodes {
		if entityType != "" && node.EntityType != entityType {
			continue
		}
		row := map[string]any{
			"id":          node.ID,
			"path":        node.Path,
			"name":        node.Name,
			"scope_id":    node.ScopeID,
			"entity_type": node.EntityType,
			"entity_id":   node.EntityID,
		}
		if filter == nil || filter.Matches(row) {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryOrganizationStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx aauth.OrganizationStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	clone := &MemoryOrganizationStore{
		scopeSeq: s.scopeSeq,
		nodeSeq:  s.nodeSeq,
		scopes:   make(map[int64]*aauth.OrganizationScope, len(s.scopes)),
		nodes:    make(map[int64]*aauth.OrganizationNode, len(s.nodes)),
		inTx:     true,
	}
	for id, scope := range s.scopes {
		clone.scopes[id] = cloneScope(scope)
	}
	for id, node := range s.nodes {
		clone.nodes[id] = cloneNode(node)
	}
	s.mu.Unlock()

	if err := fn(ctx, clone); err != nil {
		return err
	}

	s.mu.Lock()
	s.scopeSeq = clone.scopeSeq
	s.nodeSeq = clone.nodeSeq
	s.scopes = clone.scopes
	s.nodes = clone.nodes
	s.mu.Unlock()
	return nil
}

// MemoryRoleStore keeps roles and permission grants in process memory.
type MemoryRoleStore struct {
	mu      sync.RWMutex
	roleSeq int64
	permSeq int64
	roles   map[int64]*aauth.Role
	perms   map[int64][]*aauth.RolePermission
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{
		roles: make(map[int64]*aauth.Role),
		perms: make(map[int64][]*aauth.RolePermission),
	}
}

func cloneRole(r *aauth.Role) *aauth.Role {
	if r == nil {
		return nil
	}
	dup := *r
	if r.ScopeID != nil {
		sc := *r.ScopeID
		dup.ScopeID = &sc
	}
	return &dup
}

func (s *MemoryRoleStore) CreateRole(_ context.Context, role *aauth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name && scopeEqual(existing.ScopeID, role.ScopeID) {
			return fmt.Errorf("role already exists: %s", role.Name)
		}
	}
	s.roleSeq++
	role.ID = s.roleSeq
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func scopeEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *MemoryRoleStore) UpdateRole(_ context.Context, role *aauth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return fmt.Errorf("role not found: %d", role.ID)
	}
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *MemoryRoleStore) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	delete(s.perms, id)
	return nil
}

func (s *MemoryRoleStore) GetRole(_ context.Context, id int64) (*aauth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRole(s.roles[id]), nil
}

func (s *MemoryRoleStore) ListRoles(_ context.Context, ids []int64) ([]*aauth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*aauth.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := s.roles[id]; ok {
			out = append(out, cloneRole(role))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryRoleStore) Permissions(_ context.Context, roleID int64) ([]*aauth.RolePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.perms[roleID]
	out := make([]*aauth.RolePermission, 0, len(rows))
	for _, row := range rows {
		dup := *row
		out = append(out, &dup)
	}
	return out, nil
}

func (s *MemoryRoleStore) AttachPermission(_ context.Context, roleID int64, permission string, params aauth.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.perms[roleID] {
		if row.Permission == permission {
			row.Parameters = params
			return nil
		}
	}
	s.permSeq++
	s.perms[roleID] = append(s.perms[roleID], &aauth.RolePermission{
		ID:         s.permSeq,
		RoleID:     roleID,
		Permission: permission,
		Parameters: params,
	})
	return nil
}

func (s *MemoryRoleStore) DetachPermission(_ context.Context, roleID int64, permission string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.perms[roleID]
	out := rows[:0]
	for _, row := range rows {
		if row.Permission != permission {
			out = append(out, row)
		}
	}
	s.perms[roleID] = out
	return nil
}

func (s *MemoryRoleStore) DetachAllPermissions(_ context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.perms, roleID)
	return nil
}

// MemoryAssignmentStore keeps user/role/node rows in process memory.
type MemoryAssignmentStore struct {
	mu   sync.RWMutex
	rows []aauth.Assignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{}
}

func assignmentEqual(a, b aauth.Assignment) bool {
	if a.UserID != b.UserID || a.RoleID != b.RoleID {
		return false
	}
	if a.NodeID == nil || b.NodeID == nil {
		return a.NodeID == nil && b.NodeID == nil
	}
	return *a.NodeID == *b.NodeID
}

func (s *MemoryAssignmentStore) Assign(_ context.Context, a aauth.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if assignmentEqual(row, a) {
			return nil
		}
	}
	if a.NodeID != nil {
		n := *a.NodeID
		a.NodeID = &n
	}
	s.rows = append(s.rows, a)
	return nil
}

func (s *MemoryAssignmentStore) Unassign(_ context.Context, a aauth.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rows[:0]
	for _, row := range s.rows {
		if !assignmentEqual(row, a) {
			out = append(out, row)
		}
	}
	s.rows = out
	return nil
}

func (s *MemoryAssignmentStore) UnassignNode(_ context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rows[:0]
	for _, row := range s.rows {
		if row.NodeID == nil || *row.NodeID != nodeID {
			out = append(out, row)
		}
	}
	s.rows = out
	return nil
}

func (s *MemoryAssignmentStore) UnassignRole(_ context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rows[:0]
	for _, row := range s.rows {
		if row.RoleID != roleID {
			out = append(out, row)
		}
	}
	s.rows = out
	return nil
}

func (s *MemoryAssignmentStore) HasRole(_ context.Context, userID, roleID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.UserID == userID && row.RoleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryAssignmentStore) GrantRoots(_ context.Context, userID, roleID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0)
	for _, row := range s.rows {
		if row.UserID == userID && row.RoleID == roleID && row.NodeID != nil {
			out = append(out, *row.NodeID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryAssignmentStore) RoleIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	out := make([]int64, 0)
	for _, row := range s.rows {
		if row.UserID == userID && !seen[row.RoleID] {
			seen[row.RoleID] = true
			out = append(out, row.RoleID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryAssignmentStore) UsersForRole(_ context.Context, roleID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	out := make([]int64, 0)
	for _, row := range s.rows {
		if row.RoleID == roleID && !seen[row.UserID] {
			seen[row.UserID] = true
			out = append(out, row.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// MemoryRuleStore keeps ABAC rule trees in process memory. Trees are cloned
// through their JSON form on both write and read so callers can never mutate
// a stored tree in place.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[int64]map[string]*aauth.Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[int64]map[string]*aauth.Rule)}
}

func cloneRule(r *aauth.Rule) (*aauth.Rule, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return aauth.ParseRule(raw)
}

func (s *MemoryRuleStore) SaveRule(_ context.Context, roleID int64, entityType string, rule *aauth.Rule) error {
	dup, err := cloneRule(rule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[roleID] == nil {
		s.rules[roleID] = make(map[string]*aauth.Rule)
	}
	s.rules[roleID][entityType] = dup
	return nil
}

func (s *MemoryRuleStore) Rule(_ context.Context, roleID int64, entityType string) (*aauth.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRule(s.rules[roleID][entityType])
}

func (s *MemoryRuleStore) Rules(_ context.Context, roleID int64) (map[string]*aauth.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*aauth.Rule, len(s.rules[roleID]))
	for entityType, rule := range s.rules[roleID] {
		dup, err := cloneRule(rule)
		if err != nil {
			return nil, err
		}
		out[entityType] = dup
	}
	return out, nil
}

func (s *MemoryRuleStore) DeleteRule(_ context.Context, roleID int64, entityType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules[roleID], entityType)
	return nil
}

// MemoryUserDirectory answers user existence and boolean flags from process
// memory.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[int64]map[string]bool
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[int64]map[string]bool)}
}

// AddUser registers a user with its boolean flag columns.
func (s *MemoryUserDirectory) AddUser(id int64, flags map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flags == nil {
		flags = map[string]bool{}
	}
	s.users[id] = flags
}

func (s *MemoryUserDirectory) Exists(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

func (s *MemoryUserDirectory) Flag(_ context.Context, userID int64, column string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flags, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	return flags[column], nil
}

// MemoryEntityCollection is an attribute-row collection with filtered reads,
// the in-memory counterpart of a governed entity table.
type MemoryEntityCollection struct {
	mu   sync.RWMutex
	rows []map[string]any
}

func NewMemoryEntityCollection(rows ...map[string]any) *MemoryEntityCollection {
	return &MemoryEntityCollection{rows: rows}
}

// Insert appends a row.
func (c *MemoryEntityCollection) Insert(row map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

// Select returns the rows matching the filter; a nil filter matches all.
func (c *MemoryEntityCollection) Select(_ context.Context, filter *aauth.Filter) ([]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]map[string]any, 0)
	for _, row := range c.rows {
		if filter == nil || filter.Matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}
