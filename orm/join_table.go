package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// JoinPair holds a source–target pair read from a join table.
type JoinPair[S, T comparable] struct {
	Source S
	Target T
}

// JoinTable names a join table and its two foreign key columns.
type JoinTable struct {
	Table     string
	SourceCol string
	TargetCol string
}

// Reverse returns the same join table seen from the target side.
func (jt JoinTable) Reverse() JoinTable {
	return JoinTable{Table: jt.Table, SourceCol: jt.TargetCol, TargetCol: jt.SourceCol}
}

// QueryJoinTable reads (sourceCol, targetCol) rows from the given join table
// where sourceCol IN (sourceIDs). It returns a slice of JoinPair.
func QueryJoinTable[S, T comparable](
	ctx context.Context, db Querier, jt JoinTable, sourceIDs []S,
) ([]JoinPair[S, T], error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	d := db.dialect()
	qi := d.QuoteIdent

	placeholders := make([]string, len(sourceIDs))
	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s",
		qi(jt.SourceCol), qi(jt.TargetCol), qi(jt.Table), qi(jt.SourceCol),
		strings.Join(placeholders, ", "),
		qi(jt.TargetCol),
	)

	query = rewritePlaceholders(d, query)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	var pairs []JoinPair[S, T]
	for rows.Next() {
		var p JoinPair[S, T]
		if err := rows.Scan(&p.Source, &p.Target); err != nil {
			return nil, err //nolint:wrapcheck // pass through
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err() //nolint:wrapcheck // pass through
}

// UniqueTargets extracts deduplicated target values from a slice of JoinPair.
func UniqueTargets[S, T comparable](pairs []JoinPair[S, T]) []T {
	seen := make(map[T]struct{}, len(pairs))
	result := make([]T, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Target]; !ok {
			seen[p.Target] = struct{}{}
			result = append(result, p.Target)
		}
	}
	return result
}

// InsertJoinRows links source to every target. Pairs that already exist
// are skipped, so the call is idempotent. It returns the number of rows
// actually inserted.
func InsertJoinRows(ctx context.Context, db Querier, jt JoinTable, source int64, targets []int64) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	rows := make([]*Row, 0, len(targets))
	seen := make(map[int64]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		rows = append(rows, &Row{jt.SourceCol: source, jt.TargetCol: t})
	}
	n, err := KeylessRows(db, jt.Table).InsertIgnoreAll(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("link %s: %w", jt.Table, err)
	}
	return n, nil
}

// DeleteJoinRows unlinks source from the given targets and returns the
// number of rows removed. Missing pairs are ignored.
func DeleteJoinRows(ctx context.Context, db Querier, jt JoinTable, source int64, targets []int64) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	q := KeylessRows(db, jt.Table)
	n, err := q.Scopes(
		scope.Eq(jt.SourceCol, source),
		scope.In(q.qi(jt.TargetCol), targets),
	).Delete(ctx)
	if err != nil {
		return 0, fmt.Errorf("unlink %s: %w", jt.Table, err)
	}
	return n, nil
}

// CountJoinRows counts the targets linked to source.
func CountJoinRows(ctx context.Context, db Querier, jt JoinTable, source int64) (int64, error) {
	return CountRows(ctx, db, jt.Table, Row{jt.SourceCol: source})
}
