package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/aauth"
)

// SQLRoleStore persists roles and permission grants in SQL (squealx).
// Permission parameters are stored as a JSON object column; the Params codec
// keeps the key order stable across the round trip.
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, role *aauth.Role) error {
	q := `INSERT INTO roles(scope_id, name, status, tag, created_at, updated_at)
	      VALUES(:scope_id, :name, :status, :tag, :created_at, :updated_at)`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"scope_id":   int64OrNil(role.ScopeID),
		"name":       role.Name,
		"status":     string(role.Status),
		"tag":        role.Tag,
		"created_at": sqlNullTimeOrNil(role.CreatedAt),
		"updated_at": sqlNullTimeOrNil(role.UpdatedAt),
	})
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	role.ID = id
	return nil
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, role *aauth.Role) error {
	q := `UPDATE roles SET scope_id=:scope_id, name=:name, status=:status, tag=:tag, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         role.ID,
		"scope_id":   int64OrNil(role.ScopeID),
		"name":       role.Name,
		"status":     string(role.Status),
		"tag":        role.Tag,
		"updated_at": sqlNullTimeOrNil(role.UpdatedAt),
	})
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id int64) error {
	if _, err := s.db.NamedExecContext(ctx, `DELETE FROM role_permission WHERE role_id = :id`, map[string]any{"id": id}); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM roles WHERE id = :id`, map[string]any{"id": id})
	return err
}

func scanRole(r *squealx.Rows) (*aauth.Role, error) {
	role := &aauth.Role{}
	var scopeRaw, createdRaw, updatedRaw interface{}
	var status string
	if err := r.Scan(&role.ID, &scopeRaw, &role.Name, &status, &role.Tag, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	role.ScopeID = scanNullableInt64(scopeRaw)
	role.Status = aauth.Status(status)
	role.CreatedAt = scanTime(createdRaw)
	role.UpdatedAt = scanTime(updatedRaw)
	return role, nil
}

const roleColumns = `id, scope_id, name, status, tag, created_at, updated_at`

func (s *SQLRoleStore) GetRole(ctx context.Context, id int64) (*aauth.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	return scanRole(r)
}

func (s *SQLRoleStore) ListRoles(ctx context.Context, ids []int64) ([]*aauth.Role, error) {
	out := make([]*aauth.Role, 0, len(ids))
	for _, id := range ids {
		role, err := s.GetRole(ctx, id)
		if err != nil {
			return nil, err
		}
		if role != nil {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *SQLRoleStore) Permissions(ctx context.Context, roleID int64) ([]*aauth.RolePermission, error) {
	q := `SELECT id, role_id, permission, parameters_json FROM role_permission WHERE role_id = :role_id ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*aauth.RolePermission, 0)
	for r.Next() {
		row := &aauth.RolePermission{}
		var paramsRaw interface{}
		if err := r.Scan(&row.ID, &row.RoleID, &row.Permission, &paramsRaw); err != nil {
			return nil, err
		}
		switch v := paramsRaw.(type) {
		case string:
			if v != "" {
				_ = json.Unmarshal([]byte(v), &row.Parameters)
			}
		case []byte:
			if len(v) > 0 {
				_ = json.Unmarshal(v, &row.Parameters)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *SQLRoleStore) AttachPermission(ctx context.Context, roleID int64, permission string, params aauth.Params) error {
	var paramsJSON interface{}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		paramsJSON = string(raw)
	}
	q := `INSERT INTO role_permission(role_id, permission, parameters_json)
	      VALUES(:role_id, :permission, :parameters_json)
	      ON CONFLICT(role_id, permission) DO UPDATE SET parameters_json = :parameters_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission": permission, "parameters_json": paramsJSON})
	return err
}

func (s *SQLRoleStore) DetachPermission(ctx context.Context, roleID int64, permission string) error {
	q := `DELETE FROM role_permission WHERE role_id = :role_id AND permission = :permission`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission": permission})
	return err
}

func (s *SQLRoleStore) DetachAllPermissions(ctx context.Context, roleID int64) error {
	q := `DELETE FROM role_permission WHERE role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID})
	return err
}
