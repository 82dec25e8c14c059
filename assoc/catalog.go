// Package assoc declares relationships between entity kinds and provides
// the accessors that read and write them.
package assoc

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/SJBM1876/Musicians-and-Bands-Database/internal/naming"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
)

var (
	// ErrAssociationConflict is returned when a declaration contradicts an
	// earlier one for the same pair of kinds.
	ErrAssociationConflict = errors.New("assoc: association conflict")

	// ErrUnknownRelation is returned for a relation name that has not been
	// declared on the entity's kind.
	ErrUnknownRelation = errors.New("assoc: unknown relation")

	// ErrForeignEntity is returned when a target's kind is not the kind the
	// relation points at.
	ErrForeignEntity = errors.New("assoc: entity of foreign kind")

	// ErrCardinality is returned when a single-valued relation is given
	// more than one target, or a collection is read as a single value.
	ErrCardinality = errors.New("assoc: cardinality mismatch")
)

// Cardinality is the shape of a relation seen from its owning kind.
type Cardinality int

const (
	// HasMany is the parent side of a one-to-many relationship.
	HasMany Cardinality = iota + 1
	// BelongsTo is the child side of a one-to-many relationship.
	BelongsTo
	// ManyToMany is either side of a many-to-many relationship.
	ManyToMany
)

func (c Cardinality) String() string {
	switch c {
	case HasMany:
		return "has-many"
	case BelongsTo:
		return "belongs-to"
	case ManyToMany:
		return "many-to-many"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

// Relation is a named, directed view of a declared association.
type Relation struct {
	Name        string
	Kind        string
	Target      string
	Cardinality Cardinality
	// ForeignKey is the column on the child table for HasMany and
	// BelongsTo relations.
	ForeignKey string
	// Join is set for ManyToMany relations.
	Join    schema.JoinTable
	Inverse string
	methods []Method
}

// Collection reports whether the relation holds any number of targets.
func (r *Relation) Collection() bool { return r.Cardinality != BelongsTo }

// Methods returns the accessor methods generated for the relation.
func (r *Relation) Methods() []Method { return slices.Clone(r.methods) }

// Declaration records one Declare call.
type Declaration struct {
	Cardinality Cardinality // HasMany or ManyToMany
	Source      string
	Target      string
	Through     string
}

func (d Declaration) samePair(o Declaration) bool {
	return (d.Source == o.Source && d.Target == o.Target) || (d.Source == o.Target && d.Target == o.Source)
}

// Catalog holds the declared associations and the relations derived from
// them. Declarations also add the foreign keys and join tables they need
// to the registry.
type Catalog struct {
	reg *schema.Registry

	mu        sync.RWMutex
	relations map[string]map[string]*Relation
	methods   map[string]map[string]Method
	decls     []Declaration
}

// NewCatalog returns an empty Catalog over reg.
func NewCatalog(reg *schema.Registry) *Catalog {
	return &Catalog{
		reg:       reg,
		relations: make(map[string]map[string]*Relation),
		methods:   make(map[string]map[string]Method),
	}
}

// Registry returns the registry the Catalog declares against.
func (c *Catalog) Registry() *schema.Registry { return c.reg }

// DeclareOneToMany declares that a parent owns any number of children. The
// parent gets a collection relation named after the plural child kind and
// the child a single-valued relation named after the parent kind, stored in
// a nullable <parent>_id column on the child table.
func (c *Catalog) DeclareOneToMany(parent, child string) error {
	d := Declaration{Cardinality: HasMany, Source: parent, Target: child}
	fk := naming.ForeignKey(parent)
	many := &Relation{
		Name:        naming.Plural(child),
		Kind:        parent,
		Target:      child,
		Cardinality: HasMany,
		ForeignKey:  fk,
		Inverse:     parent,
	}
	one := &Relation{
		Name:        parent,
		Kind:        child,
		Target:      parent,
		Cardinality: BelongsTo,
		ForeignKey:  fk,
		Inverse:     many.Name,
	}
	return c.declare(d, []*Relation{many, one}, func() error {
		return c.reg.AddForeignKey(child, schema.ForeignKey{Column: fk, RefKind: parent, OnDelete: "SET NULL"})
	})
}

// DeclareManyToMany declares a many-to-many association between a and b
// through a join table named after through ("GroupTracks" ->
// "group_tracks") holding <a>_id and <b>_id. Each side gets a collection
// relation named after the other's plural kind.
func (c *Catalog) DeclareManyToMany(a, b, through string) error {
	d := Declaration{Cardinality: ManyToMany, Source: a, Target: b, Through: through}
	jt := schema.JoinTable{
		Name:  through,
		Table: naming.CamelToSnake(through),
		Left:  schema.JoinSide{Kind: a, Column: naming.ForeignKey(a)},
		Right: schema.JoinSide{Kind: b, Column: naming.ForeignKey(b)},
	}
	ab := &Relation{
		Name:        naming.Plural(b),
		Kind:        a,
		Target:      b,
		Cardinality: ManyToMany,
		Join:        jt,
		Inverse:     naming.Plural(a),
	}
	ba := &Relation{
		Name:        naming.Plural(a),
		Kind:        b,
		Target:      a,
		Cardinality: ManyToMany,
		Join:        jt,
		Inverse:     ab.Name,
	}
	return c.declare(d, []*Relation{ab, ba}, func() error {
		return c.reg.AddJoinTable(jt)
	})
}

func (c *Catalog) declare(d Declaration, rels []*Relation, addSchema func() error) error {
	if _, err := c.reg.Lookup(d.Source); err != nil {
		return err
	}
	if _, err := c.reg.Lookup(d.Target); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, prev := range c.decls {
		if !d.samePair(prev) {
			continue
		}
		if prev == d || (d.Cardinality == ManyToMany && prev.Cardinality == ManyToMany && prev.Through == d.Through) {
			return nil
		}
		return fmt.Errorf("%w: %s %s-%s already declared as %s %s-%s",
			ErrAssociationConflict, d.Cardinality, d.Source, d.Target, prev.Cardinality, prev.Source, prev.Target)
	}
	for _, rel := range rels {
		if _, ok := c.relations[rel.Kind][rel.Name]; ok {
			return fmt.Errorf("%w: %s already has a relation named %s", ErrAssociationConflict, rel.Kind, rel.Name)
		}
	}
	if err := addSchema(); err != nil {
		return fmt.Errorf("%w: %w", ErrAssociationConflict, err)
	}

	for _, rel := range rels {
		rel.methods = methodsFor(rel)
		if c.relations[rel.Kind] == nil {
			c.relations[rel.Kind] = make(map[string]*Relation)
			c.methods[rel.Kind] = make(map[string]Method)
		}
		c.relations[rel.Kind][rel.Name] = rel
		for _, m := range rel.methods {
			c.methods[rel.Kind][m.Name] = m
		}
	}
	c.decls = append(c.decls, d)
	return nil
}

// Relation returns the relation called name on kind.
func (c *Catalog) Relation(kind, name string) (*Relation, error) {
	if _, err := c.reg.Lookup(kind); err != nil {
		return nil, err
	}

	c.mu.RLock()
	rel, ok := c.relations[kind][name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, kind, name)
	}
	return rel, nil
}

// Relations returns the relations of kind sorted by name.
func (c *Catalog) Relations(kind string) []*Relation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Relation, 0, len(c.relations[kind]))
	for _, rel := range c.relations[kind] {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Declarations returns every accepted declaration in order.
func (c *Catalog) Declarations() []Declaration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.decls)
}

// Method looks up a generated accessor method such as "AddTracks" on kind.
func (c *Catalog) Method(kind, name string) (Method, error) {
	if _, err := c.reg.Lookup(kind); err != nil {
		return Method{}, err
	}

	c.mu.RLock()
	m, ok := c.methods[kind][name]
	c.mu.RUnlock()

	if !ok {
		return Method{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, kind, name)
	}
	return m, nil
}

// MethodNames returns the generated accessor method names of kind, sorted.
func (c *Catalog) MethodNames(kind string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.methods[kind]))
	for name := range c.methods[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
