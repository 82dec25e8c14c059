package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// PrimaryKey is the surrogate key column every entity table carries.
const PrimaryKey = "id"

// Row is a single table row keyed by column name. Values are whatever the
// driver produced; callers decode them against their field types.
type Row map[string]any

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	return slices.Sorted(maps.Keys(r))
}

// Rows returns a Query over table whose rows are scanned into Row values.
// The table must have an auto-generated integer primary key named "id".
// An empty columns list selects every column.
func Rows(db Querier, table string, columns []string) *Query[Row] {
	return NewQuery(db, table, columns, PrimaryKey, scanRow, rowColumnValues, setRowPK)
}

// KeylessRows is like Rows for tables without a generated primary key,
// such as join tables. Inserts write every column present in the Row.
func KeylessRows(db Querier, table string) *Query[Row] {
	return NewQuery[Row](db, table, nil, "", scanRow, rowColumnValues, nil)
}

// Match adds one equality condition per filter entry, in column order.
// A nil value matches NULL.
func (q *Query[T]) Match(filter Row) *Query[T] {
	q2 := q.clone()
	for _, col := range filter.Columns() {
		v := filter[col]
		if v == nil {
			q2.wheres = append(q2.wheres, whereClause{clause: q.qi(col) + " IS NULL"})
			continue
		}
		q2.wheres = append(q2.wheres, whereClause{clause: q.qi(col) + " = ?", args: []any{v}})
	}
	return q2
}

// InsertRow inserts fields into table and returns the generated id.
func InsertRow(ctx context.Context, db Querier, table string, fields Row) (int64, error) {
	row := make(Row, len(fields))
	for k, v := range fields {
		if k != PrimaryKey {
			row[k] = v
		}
	}
	if len(row) == 0 {
		return 0, fmt.Errorf("orm: insert into %s without columns", table)
	}
	if err := Rows(db, table, nil).Create(ctx, &row); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, ok := row[PrimaryKey].(int64)
	if !ok {
		return 0, fmt.Errorf("orm: insert into %s returned no id", table)
	}
	return id, nil
}

// SelectRows returns the rows of table matching filter, ordered by the
// given ORDER BY terms (backend order when none are given).
func SelectRows(ctx context.Context, db Querier, table string, filter Row, orderBy ...string) ([]Row, error) {
	q := Rows(db, table, nil).Match(filter)
	for _, o := range orderBy {
		q = q.OrderBy(o)
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return rows, nil
}

// UpdateRow sets fields on the row of table identified by id.
// Returns ErrNotFound if no such row exists.
func UpdateRow(ctx context.Context, db Querier, table string, id int64, fields Row) error {
	row := make(Row, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	row[PrimaryKey] = id
	if err := Rows(db, table, nil).Update(ctx, &row); err != nil {
		return fmt.Errorf("update %s %d: %w", table, id, err)
	}
	return nil
}

// DeleteRow removes the row of table identified by id.
// Deleting a row that does not exist is a no-op.
func DeleteRow(ctx context.Context, db Querier, table string, id int64) error {
	q := Rows(db, table, nil)
	if _, err := q.Where(q.qi(PrimaryKey)+" = ?", id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	return nil
}

// CountRows counts the rows of table matching filter.
func CountRows(ctx context.Context, db Querier, table string, filter Row) (int64, error) {
	n, err := Rows(db, table, nil).Match(filter).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func scanRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	r := make(Row, len(cols))
	for i, col := range cols {
		r[col] = vals[i]
	}
	return r, nil
}

func rowColumnValues(r *Row, includesPK bool) ([]string, []any) {
	var cols []string
	var vals []any
	for _, col := range r.Columns() {
		if col == PrimaryKey && !includesPK {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, (*r)[col])
	}
	return cols, vals
}

func setRowPK(r *Row, id int64) {
	if *r == nil {
		*r = Row{}
	}
	(*r)[PrimaryKey] = id
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
