package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// ScanFunc scans a single row into T.
type ScanFunc[T any] func(rows *sql.Rows) (T, error)

// ColumnValueFunc extracts column names and their values from a *T.
// When includesPK is false the primary key column is excluded (for INSERT
// with auto-increment).
type ColumnValueFunc[T any] func(t *T, includesPK bool) (columns []string, values []any)

// SetPKFunc sets the auto-generated primary key on *T after INSERT.
// May be nil when the primary key is not auto-generated.
type SetPKFunc[T any] func(t *T, id int64)

// JoinConfig holds the metadata needed to build a JOIN clause at runtime.
type JoinConfig struct {
	TargetTable  string
	TargetColumn string
	SourceTable  string
	SourceColumn string
}

// Query represents a pending query against a single table.
// All builder methods return a new Query; the receiver is never modified.
type Query[T any] struct {
	db          Querier
	table       string
	columns     []string
	pk          string
	scan        ScanFunc[T]
	colValPairs ColumnValueFunc[T]
	setPK       SetPKFunc[T]

	wheres   []whereClause
	orderBys []string
	joins    []string
	selects  *string
	limit    *int
	offset   *int

	joinDefs map[string]JoinConfig
}

type whereClause struct {
	clause string
	args   []any
}

// NewQuery builds a Query over table. columns is the default SELECT list;
// an empty list selects "*".
func NewQuery[T any](
	db Querier,
	table string,
	columns []string,
	pk string,
	scan ScanFunc[T],
	colValPairs ColumnValueFunc[T],
	setPK SetPKFunc[T],
) *Query[T] {
	return &Query[T]{
		db:          db,
		table:       table,
		columns:     columns,
		pk:          pk,
		scan:        scan,
		colValPairs: colValPairs,
		setPK:       setPK,
	}
}

// RegisterJoin registers a named join definition for use with Join/LeftJoin.
func (q *Query[T]) RegisterJoin(name string, cfg JoinConfig) {
	if q.joinDefs == nil {
		q.joinDefs = make(map[string]JoinConfig)
	}
	q.joinDefs[name] = cfg
}

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Query[T]) clone() *Query[T] {
	q2 := *q
	q2.wheres = append([]whereClause(nil), q.wheres...)
	q2.orderBys = append([]string(nil), q.orderBys...)
	q2.joins = append([]string(nil), q.joins...)
	return &q2
}

// --- Builder methods ---

func (q *Query[T]) Where(clause string, args ...any) *Query[T] {
	q2 := q.clone()
	q2.wheres = append(q2.wheres, whereClause{clause, args})
	return q2
}

func (q *Query[T]) OrderBy(clause string) *Query[T] {
	q2 := q.clone()
	q2.orderBys = append(q2.orderBys, clause)
	return q2
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q2 := q.clone()
	q2.limit = &n
	return q2
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q2 := q.clone()
	q2.offset = &n
	return q2
}

func (q *Query[T]) Select(columns string) *Query[T] {
	q2 := q.clone()
	q2.selects = &columns
	return q2
}

// Join adds an INNER JOIN for the named relation.
func (q *Query[T]) Join(name string) *Query[T] {
	return q.addJoin("INNER JOIN", name)
}

// LeftJoin adds a LEFT JOIN for the named relation.
func (q *Query[T]) LeftJoin(name string) *Query[T] {
	return q.addJoin("LEFT JOIN", name)
}

func (q *Query[T]) addJoin(joinType, name string) *Query[T] {
	cfg, ok := q.joinDefs[name]
	if !ok {
		return q
	}
	clause := fmt.Sprintf(
		"%s %s ON %s.%s = %s.%s",
		joinType,
		q.qi(cfg.TargetTable),
		q.qi(cfg.TargetTable), q.qi(cfg.TargetColumn),
		q.qi(cfg.SourceTable), q.qi(cfg.SourceColumn),
	)
	q2 := q.clone()
	q2.joins = append(q2.joins, clause)
	return q2
}

// Scopes applies the given scope.Scope values to the query.
func (q *Query[T]) Scopes(scopes ...scope.Scope) *Query[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// --- scope.Applier implementation ---

func (q *Query[T]) ApplyWhere(clause string, args []any) {
	q.wheres = append(q.wheres, whereClause{clause, args})
}

func (q *Query[T]) ApplyOrderBy(clause string) {
	q.orderBys = append(q.orderBys, clause)
}

func (q *Query[T]) ApplyLimit(n int)  { q.limit = &n }
func (q *Query[T]) ApplyOffset(n int) { q.offset = &n }

// ApplyQuote quotes an identifier with the query's dialect so that scopes
// built with scope.Eq work on every backend.
func (q *Query[T]) ApplyQuote(name string) string { return q.qi(name) }

var _ scope.Applier = (*Query[any])(nil)

// --- Terminal methods ---

// All executes a SELECT and returns all matching rows.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	query, args := q.buildSelect()
	query = rewritePlaceholders(q.db.dialect(), query)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	var result []T
	for rows.Next() {
		item, err := q.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	return result, nil
}

// First executes a SELECT with LIMIT 1 and returns the first row.
// Returns ErrNotFound if no rows match.
func (q *Query[T]) First(ctx context.Context) (T, error) {
	q2 := q.Limit(1)
	items, err := q2.All(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return items[0], nil
}

// Count returns the number of rows matching the current query conditions.
// A Limit or Offset bounds the count the same way it bounds All.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	query, args := q.buildCount()
	query = rewritePlaceholders(q.db.dialect(), query)

	var count int64
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return 0, errors.New("orm: COUNT returned no rows")
	}
	if err := rows.Scan(&count); err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return count, rows.Err() //nolint:wrapcheck // pass through
}

// Exists returns true if at least one row matches the current query conditions.
func (q *Query[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new row. If setPK is set, the primary key is populated
// via RETURNING (PostgreSQL) or LastInsertId (MySQL, SQLite).
func (q *Query[T]) Create(ctx context.Context, t *T) error {
	includesPK := q.setPK == nil
	columns, values := q.colValPairs(t, includesPK)

	d := q.db.dialect()
	query := rewritePlaceholders(d, q.buildInsert("INSERT INTO", columns, 1, ""))

	if d.UseReturning() && q.setPK != nil {
		query += d.ReturningClause(q.pk)
		rows, err := q.db.QueryContext(ctx, query, values...)
		if err != nil {
			return classify(q.table, err)
		}
		defer func() { _ = rows.Close() }()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return classify(q.table, err)
			}
			return errors.New("orm: INSERT RETURNING returned no rows")
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		q.setPK(t, id)
		return rows.Err() //nolint:wrapcheck // pass through
	}

	result, err := q.db.ExecContext(ctx, query, values...)
	if err != nil {
		return classify(q.table, err)
	}

	if q.setPK != nil {
		id, err := result.LastInsertId()
		if err != nil {
			return err //nolint:wrapcheck // pass through
		}
		q.setPK(t, id)
	}
	return nil
}

// CreateAll inserts multiple rows in a single INSERT statement.
// If setPK is set, primary keys are populated for each row.
func (q *Query[T]) CreateAll(ctx context.Context, items []*T) error {
	if len(items) == 0 {
		return nil
	}

	columns, allValues := q.batchValues(items)
	d := q.db.dialect()
	query := rewritePlaceholders(d, q.buildInsert("INSERT INTO", columns, len(items), ""))

	if d.UseReturning() && q.setPK != nil {
		query += d.ReturningClause(q.pk)
		rows, err := q.db.QueryContext(ctx, query, allValues...)
		if err != nil {
			return classify(q.table, err)
		}
		defer func() { _ = rows.Close() }()
		for i := 0; rows.Next(); i++ {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err //nolint:wrapcheck // pass through
			}
			q.setPK(items[i], id)
		}
		return classify(q.table, rows.Err())
	}

	result, err := q.db.ExecContext(ctx, query, allValues...)
	if err != nil {
		return classify(q.table, err)
	}

	if q.setPK != nil {
		id, err := result.LastInsertId()
		if err != nil {
			return err //nolint:wrapcheck // pass through
		}
		// MySQL reports the first id of a multi-row insert, SQLite the last.
		firstID := id
		if d.Name() == "sqlite" {
			firstID = id - int64(len(items)) + 1
		}
		for i, item := range items {
			q.setPK(item, firstID+int64(i))
		}
	}
	return nil
}

// InsertIgnoreAll inserts multiple rows, silently skipping any row that
// collides with an existing primary key or unique constraint. Other
// constraint failures, such as a missing foreign key target, are returned.
// It returns the number of rows actually inserted. Primary keys are not
// populated.
func (q *Query[T]) InsertIgnoreAll(ctx context.Context, items []*T) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	columns, allValues := q.batchValues(items)
	d := q.db.dialect()

	var query string
	if d.Name() == "mysql" {
		// Only duplicates are skipped; foreign key failures still surface.
		// A no-op assignment reports zero affected rows for duplicates.
		noop := q.qi(columns[0])
		query = q.buildInsert("INSERT INTO", columns, len(items), " ON DUPLICATE KEY UPDATE "+noop+" = "+noop)
	} else {
		query = q.buildInsert("INSERT INTO", columns, len(items), " ON CONFLICT DO NOTHING")
	}
	query = rewritePlaceholders(d, query)

	result, err := q.db.ExecContext(ctx, query, allValues...)
	if err != nil {
		return 0, classify(q.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return n, nil
}

// Update updates the row identified by the primary key of t.
// Every non-PK column reported by the ColumnValueFunc is SET, so a
// ColumnValueFunc that reports a subset performs a partial update.
// Returns ErrNotFound when no row has that primary key.
func (q *Query[T]) Update(ctx context.Context, t *T) error {
	allCols, allVals := q.colValPairs(t, true)

	var setCols []string
	var setVals []any
	var pkVal any
	for i, col := range allCols {
		if col == q.pk {
			pkVal = allVals[i]
		} else {
			setCols = append(setCols, col)
			setVals = append(setVals, allVals[i])
		}
	}
	if pkVal == nil {
		return errors.New("orm: primary key value is required for Update")
	}
	if len(setCols) == 0 {
		return errors.New("orm: Update without columns is not allowed")
	}

	setVals = append(setVals, pkVal)
	query := rewritePlaceholders(q.db.dialect(), q.buildUpdate(setCols))

	result, err := q.db.ExecContext(ctx, query, setVals...)
	if err != nil {
		return classify(q.table, err)
	}

	// MySQL reports zero affected rows when the new values equal the old
	// ones, so a zero count is confirmed with a lookup before failing.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		exists, err := q.withoutModifiers().Where(q.qi(q.pk)+" = ?", pkVal).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// UpdateAll sets the given columns on every row matching the accumulated
// WHERE clauses and returns the number of rows changed.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Query[T]) UpdateAll(ctx context.Context, set Row) (int64, error) {
	if len(q.wheres) == 0 {
		return 0, errors.New("orm: UpdateAll without WHERE clause is not allowed")
	}
	if len(set) == 0 {
		return 0, errors.New("orm: UpdateAll without columns is not allowed")
	}

	cols := set.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		sets[i] = q.qi(col) + " = ?"
		args = append(args, set[col])
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(q.qi(q.table))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	args = append(args, q.appendWhere(&b)...)
	query := rewritePlaceholders(q.db.dialect(), b.String())

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(q.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return n, nil
}

// Delete deletes rows matching the accumulated WHERE clauses and returns
// the number of rows removed.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Query[T]) Delete(ctx context.Context) (int64, error) {
	if len(q.wheres) == 0 {
		return 0, errors.New("orm: Delete without WHERE clause is not allowed")
	}
	query, args := q.buildDelete()
	query = rewritePlaceholders(q.db.dialect(), query)

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(q.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return n, nil
}

// --- SQL building ---

// qi quotes an identifier (table/column name) using the dialect.
func (q *Query[T]) qi(name string) string {
	return q.db.dialect().QuoteIdent(name)
}

// withoutModifiers returns a bare query over the same table.
func (q *Query[T]) withoutModifiers() *Query[T] {
	return NewQuery(q.db, q.table, q.columns, q.pk, q.scan, q.colValPairs, q.setPK)
}

// quoteColumns joins column names with dialect-aware quoting. Columns are
// qualified with the table name once a JOIN is present, since the joined
// table may share column names.
func (q *Query[T]) quoteColumns(cols []string, qualify bool) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if qualify {
			quoted[i] = q.qi(q.table) + "." + q.qi(c)
		} else {
			quoted[i] = q.qi(c)
		}
	}
	return strings.Join(quoted, ", ")
}

func (q *Query[T]) batchValues(items []*T) ([]string, []any) {
	includesPK := q.setPK == nil
	columns, _ := q.colValPairs(items[0], includesPK)

	var allValues []any
	for _, item := range items {
		_, vals := q.colValPairs(item, includesPK)
		allValues = append(allValues, vals...)
	}
	return columns, allValues
}

func (q *Query[T]) buildSelect() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")

	switch {
	case q.selects != nil:
		b.WriteString(*q.selects)
	case len(q.columns) == 0 && len(q.joins) > 0:
		b.WriteString(q.qi(q.table) + ".*")
	case len(q.columns) == 0:
		b.WriteString("*")
	default:
		b.WriteString(q.quoteColumns(q.columns, len(q.joins) > 0))
	}

	b.WriteString(" FROM ")
	b.WriteString(q.qi(q.table))

	for _, j := range q.joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}

	args := q.appendWhere(&b)

	if len(q.orderBys) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBys, ", "))
	}

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *q.offset)
	}

	return b.String(), args
}

func (q *Query[T]) buildCount() (string, []any) {
	if q.limit != nil || q.offset != nil {
		// Count the page, not the whole match.
		inner := q.clone()
		inner.orderBys = nil
		if inner.selects == nil {
			one := "1"
			inner.selects = &one
		}
		query, args := inner.buildSelect()
		return "SELECT COUNT(*) FROM (" + query + ") AS " + q.qi("page"), args
	}

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.qi(q.table))

	for _, j := range q.joins {
		b.WriteByte(' ')
		b.WriteString(j)
	}

	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Query[T]) buildInsert(verb string, columns []string, rowCount int, suffix string) string {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = "?"
	}
	oneRow := "(" + strings.Join(ph, ", ") + ")"

	rows := make([]string, rowCount)
	for i := range rows {
		rows[i] = oneRow
	}

	return fmt.Sprintf(
		"%s %s (%s) VALUES %s%s",
		verb,
		q.qi(q.table),
		q.quoteColumns(columns, false),
		strings.Join(rows, ", "),
		suffix,
	)
}

func (q *Query[T]) buildUpdate(setCols []string) string {
	sets := make([]string, len(setCols))
	for i, col := range setCols {
		sets[i] = q.qi(col) + " = ?"
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		q.qi(q.table),
		strings.Join(sets, ", "),
		q.qi(q.pk),
	)
}

func (q *Query[T]) buildDelete() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.qi(q.table))
	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Query[T]) appendWhere(b *strings.Builder) []any {
	if len(q.wheres) == 0 {
		return nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, w := range q.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(w.clause)
		args = append(args, w.args...)
	}
	return args
}
