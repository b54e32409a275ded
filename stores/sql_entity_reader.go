package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/aauth"
)

// SQLEntityReader reads rows of one governed entity table through a compiled
// row filter. It is the SQL counterpart of MemoryEntityCollection: callers
// hand it the filter produced by a session (hierarchy, ABAC or both) and get
// back only the rows the session may see.
type SQLEntityReader struct {
	db    *squealx.DB
	table string
}

func NewSQLEntityReader(db *squealx.DB, table string) (*SQLEntityReader, error) {
	if !columnPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid entity table: %q", table)
	}
	return &SQLEntityReader{db: db, table: table}, nil
}

// Select returns the rows matching the filter as column->value maps; a nil
// filter matches all.
func (s *SQLEntityReader) Select(ctx context.Context, filter *aauth.Filter) ([]map[string]any, error) {
	q := `SELECT * FROM ` + s.table
	args := map[string]any{}
	if filter != nil {
		clause, filterArgs := filter.ToSQL(s.table)
		q += " WHERE " + clause
		args = filterArgs
	}
	var r *squealx.Rows
	var err error
	if len(args) == 0 {
		// named-query paths reject empty parameter maps on some drivers
		r, err = s.db.QueryxContext(ctx, q)
	} else {
		r, err = s.db.NamedQueryContext(ctx, q, args)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	for r.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := r.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}
