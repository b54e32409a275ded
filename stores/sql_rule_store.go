package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/aauth"
)

// SQLRuleStore persists ABAC rule trees in SQL (squealx), one JSON document
// per (role, entity type).
type SQLRuleStore struct {
	db *squealx.DB
}

func NewSQLRuleStore(db *squealx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

func (s *SQLRuleStore) SaveRule(ctx context.Context, roleID int64, entityType string, rule *aauth.Rule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	q := `INSERT INTO role_model_abac_rule(role_id, entity_type, rules_json)
	      VALUES(:role_id, :entity_type, :rules_json)
	      ON CONFLICT(role_id, entity_type) DO UPDATE SET rules_json = :rules_json`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "entity_type": entityType, "rules_json": string(raw)})
	return err
}

func (s *SQLRuleStore) Rule(ctx context.Context, roleID int64, entityType string) (*aauth.Rule, error) {
	q := `SELECT rules_json FROM role_model_abac_rule WHERE role_id = :role_id AND entity_type = :entity_type`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID, "entity_type": entityType})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var raw string
	if err := r.Scan(&raw); err != nil {
		return nil, err
	}
	return aauth.ParseRule([]byte(raw))
}

func (s *SQLRuleStore) Rules(ctx context.Context, roleID int64) (map[string]*aauth.Rule, error) {
	q := `SELECT entity_type, rules_json FROM role_model_abac_rule WHERE role_id = :role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make(map[string]*aauth.Rule)
	for r.Next() {
		var entityType, raw string
		if err := r.Scan(&entityType, &raw); err != nil {
			return nil, err
		}
		rule, err := aauth.ParseRule([]byte(raw))
		if err != nil {
			return nil, err
		}
		out[entityType] = rule
	}
	return out, nil
}

func (s *SQLRuleStore) DeleteRule(ctx context.Context, roleID int64, entityType string) error {
	q := `DELETE FROM role_model_abac_rule WHERE role_id = :role_id AND entity_type = :entity_type`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "entity_type": entityType})
	return err
}
