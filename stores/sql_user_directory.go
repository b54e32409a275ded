package stores

import (
	"context"
	"fmt"
	"regexp"

	"github.com/oarkflow/squealx"
)

// column names come from configuration, so they are validated before being
// interpolated into SQL.
var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLUserDirectory answers user existence and boolean flag columns from a
// users table.
type SQLUserDirectory struct {
	db    *squealx.DB
	table string
}

func NewSQLUserDirectory(db *squealx.DB) *SQLUserDirectory {
	return &SQLUserDirectory{db: db, table: "users"}
}

func (s *SQLUserDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	q := `SELECT 1 FROM ` + s.table + ` WHERE id = :id LIMIT 1`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": userID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLUserDirectory) Flag(ctx context.Context, userID int64, column string) (bool, error) {
	if !columnPattern.MatchString(column) {
		return false, fmt.Errorf("invalid flag column: %q", column)
	}
	q := `SELECT ` + column + ` FROM ` + s.table + ` WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": userID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	if !r.Next() {
		return false, nil
	}
	var raw interface{}
	if err := r.Scan(&raw); err != nil {
		return false, err
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return len(v) > 0 && v[0] == '1', nil
	case string:
		return v == "1" || v == "true", nil
	}
	return false, nil
}
