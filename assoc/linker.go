package assoc

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// Linker runs relationship accessors against a Store. Every call reads or
// writes the backend directly; nothing is cached between calls.
type Linker struct {
	store   *model.Store
	catalog *Catalog
}

// NewLinker returns a Linker for the relations declared in catalog.
func NewLinker(store *model.Store, catalog *Catalog) *Linker {
	return &Linker{store: store, catalog: catalog}
}

// WithStore returns a Linker that runs against store, typically one bound
// to a transaction.
func (l *Linker) WithStore(store *model.Store) *Linker {
	return &Linker{store: store, catalog: l.catalog}
}

// Store returns the Store the Linker runs against.
func (l *Linker) Store() *model.Store { return l.store }

// Catalog returns the Catalog the Linker resolves relations in.
func (l *Linker) Catalog() *Catalog { return l.catalog }

// Transaction runs fn with a Linker bound to a transaction, so that a
// sequence of accessor calls (such as SetRelated) is applied atomically.
func (l *Linker) Transaction(ctx context.Context, fn func(tx *Linker) error) error {
	return l.store.Transaction(ctx, func(tx *model.Store) error {
		return fn(l.WithStore(tx))
	})
}

// GetRelated returns the entities related to e through the named relation,
// in id order unless scopes order them. The result is empty, not nil, when
// there are none.
func (l *Linker) GetRelated(ctx context.Context, e *model.Entity, name string, scopes ...scope.Scope) ([]*model.Entity, error) {
	rel, err := l.resolve(e, name)
	if err != nil {
		return nil, err
	}
	q, k, err := l.relatedQuery(e, rel)
	if err != nil {
		return nil, err
	}
	rows, err := q.Scopes(scopes...).OrderBy(l.column(k.Table, orm.PrimaryKey)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s.%s: %w", e.Kind, name, err)
	}
	return model.LoadAll(k, rows)
}

// CountRelated counts the entities related to e without loading them.
func (l *Linker) CountRelated(ctx context.Context, e *model.Entity, name string, scopes ...scope.Scope) (int64, error) {
	rel, err := l.resolve(e, name)
	if err != nil {
		return 0, err
	}
	q, _, err := l.relatedQuery(e, rel)
	if err != nil {
		return 0, err
	}
	n, err := q.Scopes(scopes...).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", e.Kind, name, err)
	}
	return n, nil
}

// HasRelated reports whether every target is related to e.
func (l *Linker) HasRelated(ctx context.Context, e *model.Entity, name string, targets ...*model.Entity) (bool, error) {
	rel, err := l.resolve(e, name)
	if err != nil {
		return false, err
	}
	ids, _, err := checkTargets(rel, targets)
	if err != nil || len(ids) == 0 {
		return err == nil, err
	}
	q, k, err := l.relatedQuery(e, rel)
	if err != nil {
		return false, err
	}
	n, err := q.Scopes(scope.In(l.column(k.Table, orm.PrimaryKey), ids)).Count(ctx)
	if err != nil {
		return false, fmt.Errorf("has %s.%s: %w", e.Kind, name, err)
	}
	return n == int64(len(ids)), nil
}

// AddRelated relates each target to e. For a has-many relation the
// children are moved to e from any previous parent; for a many-to-many
// relation existing links are kept and not duplicated; for a belongs-to
// relation the single target becomes e's parent.
func (l *Linker) AddRelated(ctx context.Context, e *model.Entity, name string, targets ...*model.Entity) error {
	rel, err := l.resolve(e, name)
	if err != nil {
		return err
	}
	ids, uniq, err := checkTargets(rel, targets)
	if err != nil {
		return err
	}

	switch rel.Cardinality {
	case HasMany:
		return l.adopt(ctx, e, rel, uniq)
	case BelongsTo:
		switch len(uniq) {
		case 0:
			return nil
		case 1:
			return l.setParent(ctx, e, rel, uniq[0])
		default:
			return fmt.Errorf("%w: %s.%s takes one %s, got %d", ErrCardinality, e.Kind, name, rel.Target, len(uniq))
		}
	default:
		if _, err := orm.InsertJoinRows(ctx, l.db(), rel.Join.From(rel.Kind), e.ID, ids); err != nil {
			return fmt.Errorf("add %s.%s: %w", e.Kind, name, err)
		}
		return nil
	}
}

// RemoveRelated unlinks each target from e. Targets that are not related
// to e are ignored. A has-many child keeps its row and loses its parent.
func (l *Linker) RemoveRelated(ctx context.Context, e *model.Entity, name string, targets ...*model.Entity) error {
	rel, err := l.resolve(e, name)
	if err != nil {
		return err
	}
	ids, uniq, err := checkTargets(rel, targets)
	if err != nil || len(ids) == 0 {
		return err
	}

	switch rel.Cardinality {
	case HasMany:
		return l.orphan(ctx, e, rel, uniq)
	case BelongsTo:
		owner, err := l.store.Registry().Lookup(rel.Kind)
		if err != nil {
			return err
		}
		now := orm.Now(ctx)
		q := orm.Rows(l.db(), owner.Table, nil)
		_, err = q.Scopes(
			scope.Eq(orm.PrimaryKey, e.ID),
			scope.In(q.ApplyQuote(rel.ForeignKey), ids),
		).UpdateAll(ctx, orm.Row{rel.ForeignKey: nil, schema.UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("remove %s.%s: %w", e.Kind, name, err)
		}
		if ref, ok := e.Int(rel.ForeignKey); ok && slices.Contains(ids, ref) {
			e.Values[rel.ForeignKey] = nil
			e.UpdatedAt = now
		}
		return nil
	default:
		if _, err := orm.DeleteJoinRows(ctx, l.db(), rel.Join.From(rel.Kind), e.ID, ids); err != nil {
			return fmt.Errorf("remove %s.%s: %w", e.Kind, name, err)
		}
		return nil
	}
}

// SetRelated makes targets exactly the set of entities related to e. Only
// the difference from the current state is written: missing links are
// added and links to entities not in targets are removed. An empty target
// list clears the relation.
func (l *Linker) SetRelated(ctx context.Context, e *model.Entity, name string, targets ...*model.Entity) error {
	rel, err := l.resolve(e, name)
	if err != nil {
		return err
	}
	ids, uniq, err := checkTargets(rel, targets)
	if err != nil {
		return err
	}

	switch rel.Cardinality {
	case HasMany:
		current, err := l.childIDs(ctx, e, rel)
		if err != nil {
			return err
		}
		add, remove := diff(current, ids)
		if len(remove) > 0 {
			if err := l.orphanIDs(ctx, e, rel, remove); err != nil {
				return err
			}
		}
		var adopt []*model.Entity
		for _, t := range uniq {
			if slices.Contains(add, t.ID) {
				adopt = append(adopt, t)
			} else if t.Values != nil {
				t.Values[rel.ForeignKey] = e.ID
			}
		}
		return l.adopt(ctx, e, rel, adopt)
	case BelongsTo:
		switch len(uniq) {
		case 0:
			return l.setParent(ctx, e, rel, nil)
		case 1:
			return l.setParent(ctx, e, rel, uniq[0])
		default:
			return fmt.Errorf("%w: %s.%s takes one %s, got %d", ErrCardinality, e.Kind, name, rel.Target, len(uniq))
		}
	default:
		jt := rel.Join.From(rel.Kind)
		pairs, err := orm.QueryJoinTable[int64, int64](ctx, l.db(), jt, []int64{e.ID})
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", e.Kind, name, err)
		}
		add, remove := diff(orm.UniqueTargets(pairs), ids)
		if _, err := orm.DeleteJoinRows(ctx, l.db(), jt, e.ID, remove); err != nil {
			return fmt.Errorf("set %s.%s: %w", e.Kind, name, err)
		}
		if _, err := orm.InsertJoinRows(ctx, l.db(), jt, e.ID, add); err != nil {
			return fmt.Errorf("set %s.%s: %w", e.Kind, name, err)
		}
		return nil
	}
}

// GetParent returns the target of a belongs-to relation, or nil when the
// reference is NULL.
func (l *Linker) GetParent(ctx context.Context, e *model.Entity, name string) (*model.Entity, error) {
	if err := l.singular(e, name); err != nil {
		return nil, err
	}
	related, err := l.GetRelated(ctx, e, name)
	if err != nil || len(related) == 0 {
		return nil, err
	}
	return related[0], nil
}

// SetParent points a belongs-to relation at parent. A nil parent clears it.
func (l *Linker) SetParent(ctx context.Context, e *model.Entity, name string, parent *model.Entity) error {
	if err := l.singular(e, name); err != nil {
		return err
	}
	if parent == nil {
		return l.SetRelated(ctx, e, name)
	}
	return l.SetRelated(ctx, e, name, parent)
}

// ClearParent sets a belongs-to relation to NULL.
func (l *Linker) ClearParent(ctx context.Context, e *model.Entity, name string) error {
	return l.SetParent(ctx, e, name, nil)
}

func (l *Linker) db() orm.Querier { return l.store.Querier() }

func (l *Linker) column(table, col string) string {
	d := orm.DialectOf(l.db())
	return d.QuoteIdent(table) + "." + d.QuoteIdent(col)
}

func (l *Linker) resolve(e *model.Entity, name string) (*Relation, error) {
	if err := model.RequirePersisted(e); err != nil {
		return nil, err
	}
	return l.catalog.Relation(e.Kind, name)
}

func (l *Linker) singular(e *model.Entity, name string) error {
	if e == nil {
		return model.RequirePersisted(e)
	}
	rel, err := l.catalog.Relation(e.Kind, name)
	if err != nil {
		return err
	}
	if rel.Collection() {
		return fmt.Errorf("%w: %s.%s is a collection", ErrCardinality, e.Kind, name)
	}
	return nil
}

// relatedQuery selects the target rows of rel for e.
func (l *Linker) relatedQuery(e *model.Entity, rel *Relation) (*orm.Query[orm.Row], *schema.Kind, error) {
	q, k, err := l.store.Query(rel.Target)
	if err != nil {
		return nil, nil, err
	}

	switch rel.Cardinality {
	case HasMany:
		return q.Where(l.column(k.Table, rel.ForeignKey)+" = ?", e.ID), k, nil
	case BelongsTo:
		owner, err := l.store.Registry().Lookup(rel.Kind)
		if err != nil {
			return nil, nil, err
		}
		d := orm.DialectOf(l.db())
		sub := fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s = ?)",
			l.column(k.Table, orm.PrimaryKey),
			d.QuoteIdent(rel.ForeignKey), d.QuoteIdent(owner.Table), d.QuoteIdent(orm.PrimaryKey))
		return q.Where(sub, e.ID), k, nil
	default:
		jt := rel.Join.From(rel.Kind)
		q.RegisterJoin(rel.Join.Name, orm.JoinConfig{
			TargetTable:  jt.Table,
			TargetColumn: jt.TargetCol,
			SourceTable:  k.Table,
			SourceColumn: orm.PrimaryKey,
		})
		return q.Join(rel.Join.Name).Where(l.column(jt.Table, jt.SourceCol)+" = ?", e.ID), k, nil
	}
}

// adopt points each child's foreign key at e, one row at a time so that a
// vanished child surfaces as orm.ErrNotFound.
func (l *Linker) adopt(ctx context.Context, e *model.Entity, rel *Relation, children []*model.Entity) error {
	child, err := l.store.Registry().Lookup(rel.Target)
	if err != nil {
		return err
	}
	now := orm.Now(ctx)
	for _, c := range children {
		err := orm.UpdateRow(ctx, l.db(), child.Table, c.ID, orm.Row{rel.ForeignKey: e.ID, schema.UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("add %s.%s: %w", e.Kind, rel.Name, err)
		}
		setValue(c, rel.ForeignKey, e.ID, now)
	}
	return nil
}

// orphan clears the foreign key of the given children that still point
// at e.
func (l *Linker) orphan(ctx context.Context, e *model.Entity, rel *Relation, children []*model.Entity) error {
	ids := make([]int64, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	if err := l.orphanIDs(ctx, e, rel, ids); err != nil {
		return err
	}
	now := orm.Now(ctx)
	for _, c := range children {
		if ref, ok := c.Int(rel.ForeignKey); ok && ref == e.ID {
			setValue(c, rel.ForeignKey, nil, now)
		}
	}
	return nil
}

func (l *Linker) orphanIDs(ctx context.Context, e *model.Entity, rel *Relation, ids []int64) error {
	child, err := l.store.Registry().Lookup(rel.Target)
	if err != nil {
		return err
	}
	q := orm.Rows(l.db(), child.Table, nil)
	_, err = q.Scopes(
		scope.Eq(rel.ForeignKey, e.ID),
		scope.In(q.ApplyQuote(orm.PrimaryKey), ids),
	).UpdateAll(ctx, orm.Row{rel.ForeignKey: nil, schema.UpdatedAt: orm.Now(ctx)})
	if err != nil {
		return fmt.Errorf("remove %s.%s: %w", e.Kind, rel.Name, err)
	}
	return nil
}

// childIDs returns the ids of the children currently pointing at e.
func (l *Linker) childIDs(ctx context.Context, e *model.Entity, rel *Relation) ([]int64, error) {
	child, err := l.store.Registry().Lookup(rel.Target)
	if err != nil {
		return nil, err
	}
	rows, err := orm.Rows(l.db(), child.Table, []string{orm.PrimaryKey}).
		Scopes(scope.Eq(rel.ForeignKey, e.ID)).
		OrderBy(l.column(child.Table, orm.PrimaryKey)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("set %s.%s: %w", e.Kind, rel.Name, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		v, err := schema.Integer.Decode(row[orm.PrimaryKey])
		if err != nil {
			return nil, err
		}
		id, _ := v.(int64)
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *Linker) setParent(ctx context.Context, e *model.Entity, rel *Relation, parent *model.Entity) error {
	owner, err := l.store.Registry().Lookup(rel.Kind)
	if err != nil {
		return err
	}
	var ref any
	if parent != nil {
		ref = parent.ID
	}
	now := orm.Now(ctx)
	if err := orm.UpdateRow(ctx, l.db(), owner.Table, e.ID, orm.Row{rel.ForeignKey: ref, schema.UpdatedAt: now}); err != nil {
		return fmt.Errorf("set %s.%s: %w", e.Kind, rel.Name, err)
	}
	setValue(e, rel.ForeignKey, ref, now)
	return nil
}

func setValue(e *model.Entity, col string, v any, now time.Time) {
	if e.Values == nil {
		e.Values = make(map[string]any)
	}
	e.Values[col] = v
	e.UpdatedAt = now
}

// checkTargets validates targets against rel and returns their distinct
// ids and entities in first-seen order.
func checkTargets(rel *Relation, targets []*model.Entity) ([]int64, []*model.Entity, error) {
	ids := make([]int64, 0, len(targets))
	uniq := make([]*model.Entity, 0, len(targets))
	for _, t := range targets {
		if t != nil && t.Kind != rel.Target {
			return nil, nil, fmt.Errorf("%w: %s.%s holds %s, got %s", ErrForeignEntity, rel.Kind, rel.Name, rel.Target, t.Kind)
		}
		if err := model.RequirePersisted(t); err != nil {
			return nil, nil, err
		}
		if slices.Contains(ids, t.ID) {
			continue
		}
		ids = append(ids, t.ID)
		uniq = append(uniq, t)
	}
	return ids, uniq, nil
}

// diff returns the ids in want but not in have, and the ids in have but
// not in want, each in input order.
func diff(have, want []int64) (add, remove []int64) {
	for _, id := range want {
		if !slices.Contains(have, id) {
			add = append(add, id)
		}
	}
	for _, id := range have {
		if !slices.Contains(want, id) {
			remove = append(remove, id)
		}
	}
	return add, remove
}
