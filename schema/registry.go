// Package schema holds the registry of entity kinds: their fields, foreign
// keys and join tables, and the DDL that creates them.
package schema

import (
	"fmt"
	"slices"
	"sync"
	"unicode"

	"github.com/SJBM1876/Musicians-and-Bands-Database/internal/naming"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

// Option customizes a kind at registration.
type Option func(*Kind)

// WithTable overrides the table name derived from the kind name.
func WithTable(table string) Option {
	return func(k *Kind) { k.Table = table }
}

// Registry is a thread-safe registry of entity kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
	order []string
	joins []JoinTable
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// Register adds a kind with the given ordered fields.
func (r *Registry) Register(name string, fields []Field, opts ...Option) error {
	k := &Kind{Name: name, Table: naming.TableName(name), Fields: slices.Clone(fields)}
	for _, opt := range opts {
		opt(k)
	}
	if err := checkKind(k); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, name)
	}
	for _, other := range r.kinds {
		if other.Table == k.Table {
			return fmt.Errorf("%w: table %s already used by %s", ErrInvalidDefinition, k.Table, other.Name)
		}
	}
	r.kinds[name] = k
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (*Kind, error) {
	r.mu.RLock()
	k, ok := r.kinds[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Kind, len(r.order))
	for i, name := range r.order {
		out[i] = r.kinds[name]
	}
	return out
}

// AddForeignKey adds a nullable foreign key column to kind. Adding the same
// column with the same target again is a no-op.
func (r *Registry) AddForeignKey(kind string, fk ForeignKey) error {
	if !naming.IsIdent(fk.Column) || isReserved(fk.Column) {
		return fmt.Errorf("%w: foreign key column %q", ErrInvalidDefinition, fk.Column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.kinds[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	ref, ok := r.kinds[fk.RefKind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, fk.RefKind)
	}
	fk.RefTable = ref.Table
	if existing, ok := k.ForeignKey(fk.Column); ok {
		if existing == fk {
			return nil
		}
		return fmt.Errorf("%w: %s.%s already references %s", ErrInvalidDefinition, kind, fk.Column, existing.RefKind)
	}
	if _, ok := k.Field(fk.Column); ok {
		return fmt.Errorf("%w: %s.%s is a declared field", ErrInvalidDefinition, kind, fk.Column)
	}

	// Copy on write: kinds already handed out stay unchanged.
	next := k.clone()
	next.ForeignKeys = append(next.ForeignKeys, fk)
	r.kinds[kind] = next
	return nil
}

// AddJoinTable records a join table between two registered kinds. Adding an
// identical join table again is a no-op.
func (r *Registry) AddJoinTable(jt JoinTable) error {
	if !naming.IsIdent(jt.Table) || !naming.IsIdent(jt.Left.Column) || !naming.IsIdent(jt.Right.Column) ||
		jt.Left.Column == jt.Right.Column {
		return fmt.Errorf("%w: join table %s(%s, %s)", ErrInvalidDefinition, jt.Table, jt.Left.Column, jt.Right.Column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, side := range []*JoinSide{&jt.Left, &jt.Right} {
		k, ok := r.kinds[side.Kind]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKind, side.Kind)
		}
		side.Table = k.Table
	}
	for _, existing := range r.joins {
		if existing.Table != jt.Table {
			continue
		}
		if existing == jt {
			return nil
		}
		return fmt.Errorf("%w: join table %s already declared for %s", ErrInvalidDefinition, jt.Table, existing.Name)
	}
	for _, k := range r.kinds {
		if k.Table == jt.Table {
			return fmt.Errorf("%w: table %s already used by %s", ErrInvalidDefinition, jt.Table, k.Name)
		}
	}
	r.joins = append(r.joins, jt)
	return nil
}

// JoinTables returns every join table in declaration order.
func (r *Registry) JoinTables() []JoinTable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]JoinTable(nil), r.joins...)
}

func checkKind(k *Kind) error {
	if k.Name == "" || !unicode.IsUpper([]rune(k.Name)[0]) {
		return fmt.Errorf("%w: kind name %q must start with an uppercase letter", ErrInvalidDefinition, k.Name)
	}
	if !naming.IsIdent(k.Table) {
		return fmt.Errorf("%w: table name %q", ErrInvalidDefinition, k.Table)
	}
	seen := make(map[string]struct{}, len(k.Fields))
	for _, f := range k.Fields {
		switch {
		case !naming.IsIdent(f.Name):
			return fmt.Errorf("%w: %s field name %q", ErrInvalidDefinition, k.Name, f.Name)
		case isReserved(f.Name):
			return fmt.Errorf("%w: %s field name %q is reserved", ErrInvalidDefinition, k.Name, f.Name)
		case f.Type < String || f.Type > Time:
			return fmt.Errorf("%w: %s.%s has %s", ErrInvalidDefinition, k.Name, f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s field %q declared twice", ErrInvalidDefinition, k.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func isReserved(name string) bool {
	return name == orm.PrimaryKey || name == CreatedAt || name == UpdatedAt
}
