package stores

import (
	"context"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/aauth"
)

// SQLAssignmentStore persists user/role/node assignment rows in SQL (squealx).
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) Assign(ctx context.Context, a aauth.Assignment) error {
	q := `INSERT INTO user_role_organization_node(user_id, role_id, organization_node_id)
	      VALUES(:user_id, :role_id, :organization_node_id)
	      ON CONFLICT(user_id, role_id, COALESCE(organization_node_id, 0)) DO NOTHING`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":              a.UserID,
		"role_id":              a.RoleID,
		"organization_node_id": int64OrNil(a.NodeID),
	})
	return err
}

func (s *SQLAssignmentStore) Unassign(ctx context.Context, a aauth.Assignment) error {
	q := `DELETE FROM user_role_organization_node
	      WHERE user_id = :user_id AND role_id = :role_id AND COALESCE(organization_node_id, 0) = COALESCE(:organization_node_id, 0)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":              a.UserID,
		"role_id":              a.RoleID,
		"organization_node_id": int64OrNil(a.NodeID),
	})
	return err
}

func (s *SQLAssignmentStore) UnassignNode(ctx context.Context, nodeID int64) error {
	q := `DELETE FROM user_role_organization_node WHERE organization_node_id = :node_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"node_id": nodeID})
	return err
}

func (s *SQLAssignmentStore) UnassignRole(ctx context.Context, roleID int64) error {
	q := `DELETE FROM user_role_organization_node WHERE role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID})
	return err
}

func (s *SQLAssignmentStore) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	q := `SELECT 1 FROM user_role_organization_node WHERE user_id = :user_id AND role_id = :role_id LIMIT 1`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLAssignmentStore) GrantRoots(ctx context.Context, userID, roleID int64) ([]int64, error) {
	q := `SELECT organization_node_id FROM user_role_organization_node
	      WHERE user_id = :user_id AND role_id = :role_id AND organization_node_id IS NOT NULL
	      ORDER BY organization_node_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]int64, 0)
	for r.Next() {
		var id int64
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *SQLAssignmentStore) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	q := `SELECT DISTINCT role_id FROM user_role_organization_node WHERE user_id = :user_id ORDER BY role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]int64, 0)
	for r.Next() {
		var id int64
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *SQLAssignmentStore) UsersForRole(ctx context.Context, roleID int64) ([]int64, error) {
	q := `SELECT DISTINCT user_id FROM user_role_organization_node WHERE role_id = :role_id ORDER BY user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]int64, 0)
	for r.Next() {
		var id int64
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
