package assoc

import (
	"context"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// Accessor bundles the operations of one relation, bound to a Linker.
type Accessor struct {
	Relation *Relation
	Get      func(ctx context.Context, e *model.Entity, scopes ...scope.Scope) ([]*model.Entity, error)
	Count    func(ctx context.Context, e *model.Entity, scopes ...scope.Scope) (int64, error)
	Has      func(ctx context.Context, e *model.Entity, targets ...*model.Entity) (bool, error)
	Add      func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error
	Set      func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error
	Remove   func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error
}

// Names returns the generated method names served by the accessor.
func (a Accessor) Names() []string {
	methods := a.Relation.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	return names
}

// Accessors returns the accessor table of kind keyed by relation name.
func (l *Linker) Accessors(kind string) map[string]Accessor {
	rels := l.catalog.Relations(kind)
	out := make(map[string]Accessor, len(rels))
	for _, rel := range rels {
		name := rel.Name
		out[name] = Accessor{
			Relation: rel,
			Get: func(ctx context.Context, e *model.Entity, scopes ...scope.Scope) ([]*model.Entity, error) {
				return l.GetRelated(ctx, e, name, scopes...)
			},
			Count: func(ctx context.Context, e *model.Entity, scopes ...scope.Scope) (int64, error) {
				return l.CountRelated(ctx, e, name, scopes...)
			},
			Has: func(ctx context.Context, e *model.Entity, targets ...*model.Entity) (bool, error) {
				return l.HasRelated(ctx, e, name, targets...)
			},
			Add: func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error {
				return l.AddRelated(ctx, e, name, targets...)
			},
			Set: func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error {
				return l.SetRelated(ctx, e, name, targets...)
			},
			Remove: func(ctx context.Context, e *model.Entity, targets ...*model.Entity) error {
				return l.RemoveRelated(ctx, e, name, targets...)
			},
		}
	}
	return out
}

// Result is the outcome of Call: entities for get, a count for count, a
// boolean for has, nothing for writes.
type Result struct {
	Entities []*model.Entity
	Count    int64
	Has      bool
}

// Call runs the generated accessor method called method (e.g. "AddTracks")
// on e.
func (l *Linker) Call(ctx context.Context, e *model.Entity, method string, targets ...*model.Entity) (Result, error) {
	if err := model.RequirePersisted(e); err != nil {
		return Result{}, err
	}
	m, err := l.catalog.Method(e.Kind, method)
	if err != nil {
		return Result{}, err
	}
	name := m.Relation.Name

	var res Result
	switch m.Op {
	case OpGet:
		res.Entities, err = l.GetRelated(ctx, e, name)
	case OpCount:
		res.Count, err = l.CountRelated(ctx, e, name)
	case OpHas:
		res.Has, err = l.HasRelated(ctx, e, name, targets...)
	case OpAdd:
		err = l.AddRelated(ctx, e, name, targets...)
	case OpSet:
		err = l.SetRelated(ctx, e, name, targets...)
	case OpRemove:
		err = l.RemoveRelated(ctx, e, name, targets...)
	}
	return res, err
}
