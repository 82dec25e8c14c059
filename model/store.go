package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// Store reads and writes entities of registered kinds through a Querier.
type Store struct {
	db  orm.Querier
	reg *schema.Registry
}

// NewStore returns a Store over db for the kinds in reg.
func NewStore(db orm.Querier, reg *schema.Registry) *Store {
	return &Store{db: db, reg: reg}
}

// WithQuerier returns a copy of the Store that runs against q, typically
// a *orm.Tx.
func (s *Store) WithQuerier(q orm.Querier) *Store {
	return &Store{db: q, reg: s.reg}
}

// Querier returns the connection or transaction the Store runs against.
func (s *Store) Querier() orm.Querier { return s.db }

// Registry returns the registry the Store validates against.
func (s *Store) Registry() *schema.Registry { return s.reg }

// Transaction runs fn with a Store bound to a new transaction. If the
// Store is already bound to a transaction, fn joins it.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	db, ok := s.db.(*orm.DB)
	if !ok {
		return fn(s)
	}
	return db.Transaction(ctx, func(tx *orm.Tx) error {
		return fn(s.WithQuerier(tx))
	})
}

// Sync creates the tables of every registered kind and join table. With
// force, existing tables are dropped first.
func (s *Store) Sync(ctx context.Context, force bool) error {
	d := orm.DialectOf(s.db)
	var stmts []string
	if force {
		stmts = append(stmts, s.reg.DropStatements(d)...)
	}
	stmts = append(stmts, s.reg.CreateStatements(d)...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}
	return nil
}

// Query returns a row query over kind's table selecting the kind's columns.
func (s *Store) Query(kind string) (*orm.Query[orm.Row], *schema.Kind, error) {
	k, err := s.reg.Lookup(kind)
	if err != nil {
		return nil, nil, err
	}
	return orm.Rows(s.db, k.Table, k.Columns()), k, nil
}

// Create validates values against kind and inserts a new row.
func (s *Store) Create(ctx context.Context, kind string, values map[string]any) (*Entity, error) {
	k, err := s.reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	row, err := k.Validate(values, false)
	if err != nil {
		return nil, err
	}

	now := orm.Now(ctx)
	row[schema.CreatedAt] = now
	row[schema.UpdatedAt] = now
	id, err := orm.InsertRow(ctx, s.db, k.Table, row)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	e := &Entity{Kind: kind, ID: id, Values: make(map[string]any), CreatedAt: now, UpdatedAt: now}
	for _, f := range k.Fields {
		e.Values[f.Name] = row[f.Name]
	}
	for _, fk := range k.ForeignKeys {
		e.Values[fk.Column] = row[fk.Column]
	}
	return e, nil
}

// Find returns the entity of kind with the given id, or orm.ErrNotFound.
func (s *Store) Find(ctx context.Context, kind string, id int64) (*Entity, error) {
	q, k, err := s.Query(kind)
	if err != nil {
		return nil, err
	}
	row, err := q.Scopes(scope.Eq(orm.PrimaryKey, id)).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s %d: %w", kind, id, err)
	}
	return Load(k, row)
}

// FindOne returns the first entity of kind matching scopes in id order, or
// nil when nothing matches.
func (s *Store) FindOne(ctx context.Context, kind string, scopes ...scope.Scope) (*Entity, error) {
	q, k, err := s.Query(kind)
	if err != nil {
		return nil, err
	}
	row, err := q.Scopes(scopes...).OrderBy(q.ApplyQuote(orm.PrimaryKey)).First(ctx)
	if errors.Is(err, orm.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	return Load(k, row)
}

// FindAll returns every entity of kind matching scopes. Scope ordering
// applies first; ties and unordered results fall back to id order.
func (s *Store) FindAll(ctx context.Context, kind string, scopes ...scope.Scope) ([]*Entity, error) {
	q, k, err := s.Query(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.Scopes(scopes...).OrderBy(q.ApplyQuote(orm.PrimaryKey)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	return LoadAll(k, rows)
}

// Count returns the number of entities of kind matching scopes.
func (s *Store) Count(ctx context.Context, kind string, scopes ...scope.Scope) (int64, error) {
	q, _, err := s.Query(kind)
	if err != nil {
		return 0, err
	}
	n, err := q.Scopes(scopes...).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Update writes the given fields of e and merges them into e. Fields not
// named in changes keep their values.
func (s *Store) Update(ctx context.Context, e *Entity, changes map[string]any) error {
	if err := RequirePersisted(e); err != nil {
		return err
	}
	k, err := s.reg.Lookup(e.Kind)
	if err != nil {
		return err
	}
	row, err := k.Validate(changes, true)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return nil
	}

	now := orm.Now(ctx)
	row[schema.UpdatedAt] = now
	if err := orm.UpdateRow(ctx, s.db, k.Table, e.ID, row); err != nil {
		return fmt.Errorf("update %s: %w", e.Kind, err)
	}
	if e.Values == nil {
		e.Values = make(map[string]any, len(row))
	}
	for col, v := range row {
		if col != schema.UpdatedAt {
			e.Values[col] = v
		}
	}
	e.UpdatedAt = now
	return nil
}

// Reload replaces e's values with the row currently stored.
func (s *Store) Reload(ctx context.Context, e *Entity) error {
	if err := RequirePersisted(e); err != nil {
		return err
	}
	fresh, err := s.Find(ctx, e.Kind, e.ID)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

// Destroy deletes e's row. Destroying a row that is already gone succeeds.
func (s *Store) Destroy(ctx context.Context, e *Entity) error {
	if err := RequirePersisted(e); err != nil {
		return err
	}
	k, err := s.reg.Lookup(e.Kind)
	if err != nil {
		return err
	}
	if err := orm.DeleteRow(ctx, s.db, k.Table, e.ID); err != nil {
		return fmt.Errorf("destroy %s: %w", e.Kind, err)
	}
	return nil
}

// Load decodes a row of k's table into an Entity.
func Load(k *schema.Kind, row orm.Row) (*Entity, error) {
	vals, err := k.Decode(row)
	if err != nil {
		return nil, err
	}
	e := &Entity{Kind: k.Name, Values: make(map[string]any, len(vals))}
	for col, v := range vals {
		switch col {
		case orm.PrimaryKey:
			e.ID, _ = v.(int64)
		case schema.CreatedAt:
			e.CreatedAt, _ = v.(time.Time)
		case schema.UpdatedAt:
			e.UpdatedAt, _ = v.(time.Time)
		default:
			e.Values[col] = v
		}
	}
	return e, nil
}

// LoadAll decodes rows of k's table. The result is never nil.
func LoadAll(k *schema.Kind, rows []orm.Row) ([]*Entity, error) {
	out := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		e, err := Load(k, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
