package stores

import (
	"context"
	"database/sql"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/aauth"
)

// namedQuerier is the slice of the squealx API the stores use; both
// *squealx.DB and *squealx.Tx satisfy it, which is what lets one store type
// serve as its own transactional view.
type namedQuerier interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQueryContext(ctx context.Context, query string, arg interface{}) (*squealx.Rows, error)
}

// SQLOrganizationStore persists scopes and nodes in SQL (squealx).
type SQLOrganizationStore struct {
	db *squealx.DB
	q  namedQuerier
}

func NewSQLOrganizationStore(db *squealx.DB) *SQLOrganizationStore {
	return &SQLOrganizationStore{db: db, q: db}
}

func (s *SQLOrganizationStore) CreateScope(ctx context.Context, scope *aauth.OrganizationScope) error {
	q := `INSERT INTO organization_scopes(name, level, status) VALUES(:name, :level, :status)`
	res, err := s.q.NamedExecContext(ctx, q, map[string]any{"name": scope.Name, "level": scope.Level, "status": string(scope.Status)})
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	scope.ID = id
	return nil
}

func (s *SQLOrganizationStore) UpdateScope(ctx context.Context, scope *aauth.OrganizationScope) error {
	q := `UPDATE organization_scopes SET name=:name, level=:level, status=:status WHERE id=:id`
	_, err := s.q.NamedExecContext(ctx, q, map[string]any{"id": scope.ID, "name": scope.Name, "level": scope.Level, "status": string(scope.Status)})
	return err
}

func (s *SQLOrganizationStore) DeleteScope(ctx context.Context, id int64) error {
	q := `DELETE FROM organization_scopes WHERE id = :id`
	_, err := s.q.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLOrganizationStore) GetScope(ctx context.Context, id int64) (*aauth.OrganizationScope, error) {
	q := `SELECT id, name, level, status FROM organization_scopes WHERE id = :id`
	r, err := s.q.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	scope := &aauth.OrganizationScope{}
	var status string
	if err := r.Scan(&scope.ID, &scope.Name, &scope.Level, &status); err != nil {
		return nil, err
	}
	scope.Status = aauth.Status(status)
	return scope, nil
}

const nodeColumns = `id, scope_id, name, entity_type, entity_id, path, parent_id, created_at, updated_at`

func scanNode(r *squealx.Rows) (*aauth.OrganizationNode, error) {
	node := &aauth.OrganizationNode{}
	var parentRaw, createdRaw, updatedRaw interface{}
	if err := r.Scan(&node.ID, &node.ScopeID, &node.Name, &node.EntityType, &node.EntityID, &node.Path, &parentRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	node.ParentID = scanNullableInt64(parentRaw)
	node.CreatedAt = scanTime(createdRaw)
	node.UpdatedAt = scanTime(updatedRaw)
	return node, nil
}

func (s *SQLOrganizationStore) nodeArgs(node *aauth.OrganizationNode) map[string]any {
	return map[string]any{
		"id":          node.ID,
		"scope_id":    node.ScopeID,
		"name":        node.Name,
		"entity_type": node.EntityType,
		"entity_id":   node.EntityID,
		"path":        node.Path,
		"parent_id":   int64OrNil(node.ParentID),
		"created_at":  sqlNullTimeOrNil(node.CreatedAt),
		"updated_at":  sqlNullTimeOrNil(node.UpdatedAt),
	}
}

func (s *SQLOrganizationStore) CreateNode(ctx context.Context, node *aauth.OrganizationNode) error {
	q := `INSERT INTO organization_nodes(scope_id, name, entity_type, entity_id, path, parent_id, created_at, updated_at)
	      VALUES(:scope_id, :name, :entity_type, :entity_id, :path, :parent_id, :created_at, :updated_at)`
	res, err := s.q.NamedExecContext(ctx, q, s.nodeArgs(node))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	node.ID = id
	return nil
}

func (s *SQLOrganizationStore) UpdateNode(ctx context.Context, node *aauth.OrganizationNode) error {
	q := `UPDATE organization_nodes SET scope_id=:scope_id, name=:name, entity_type=:entity_type, entity_id=:entity_id,
	      path=:path, parent_id=:parent_id, updated_at=:updated_at WHERE id=:id`
	_, err := s.q.NamedExecContext(ctx, q, s.nodeArgs(node))
	return err
}

func (s *SQLOrganizationStore) DeleteNode(ctx context.Context, id int64) error {
	q := `DELETE FROM organization_nodes WHERE id = :id`
	_, err := s.q.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLOrganizationStore) GetNode(ctx context.Context, id int64) (*aauth.OrganizationNode, error) {
	q := `SELECT ` + nodeColumns + ` FROM organization_nodes WHERE id = :id`
	r, err := s.q.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	return scanNode(r)
}

func (s *SQLOrganizationStore) NodeByEntity(ctx context.Context, entityType string, entityID int64) (*aauth.OrganizationNode, error) {
	q := `SELECT ` + nodeColumns + ` FROM organization_nodes WHERE entity_type = :entity_type AND entity_id = :entity_id`
	r, err := s.q.NamedQueryContext(ctx, q, map[string]any{"entity_type": entityType, "entity_id": entityID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	return scanNode(r)
}

func (s *SQLOrganizationStore) ChildrenOf(ctx context.Context, parentID int64) ([]*aauth.OrganizationNode, error) {
	q := `SELECT ` + nodeColumns + ` FROM organization_nodes WHERE parent_id = :parent_id ORDER BY id`
	r, err := s.q.NamedQueryContext(ctx, q, map[string]any{"parent_id": parentID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*aauth.OrganizationNode, 0)
	for r.Next() {
		node, err := scanNode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (s *SQLOrganizationStore) SelectNodes(ctx context.Context, filter *aauth.Filter, entityType string) ([]*aauth.OrganizationNode, error) {
	q := `SELECT ` + nodeColumns + ` FROM organization_nodes`
	args := map[string]any{}
	where := ""
	if filter != nil {
		clause, filterArgs := filter.ToSQL("organization_nodes")
		where = clause
		for k, v := range filterArgs {
			args[k] = v
		}
	}
	if entityType != "" {
		if where != "" {
			where += " AND "
		}
		where += "entity_type = :select_entity_type"
		args["select_entity_type"] = entityType
	}
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY id"
	r, err := s.q.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*aauth.OrganizationNode, 0)
	for r.Next() {
		node, err := scanNode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (s *SQLOrganizationStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx aauth.OrganizationStore) error) error {
	if _, nested := s.q.(*squealx.Tx); nested {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	view := &SQLOrganizationStore{db: s.db, q: tx}
	if err := fn(ctx, view); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
