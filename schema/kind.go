package schema

import (
	"fmt"
	"maps"
	"slices"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

// Timestamp columns carried by every entity table.
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// Field describes one declared attribute of a kind.
type Field struct {
	Name     string
	Type     Type
	Required bool
}

// Required returns a field that must be present and non-nil on create.
func Required(name string, t Type) Field { return Field{Name: name, Type: t, Required: true} }

// Optional returns a nullable field.
func Optional(name string, t Type) Field { return Field{Name: name, Type: t} }

// ForeignKey is a nullable integer column on a kind's table that references
// another kind's primary key.
type ForeignKey struct {
	Column   string
	RefKind  string
	RefTable string
	OnDelete string
}

// Kind is the registered definition of an entity kind. Kinds returned by a
// Registry are shared and must not be modified.
type Kind struct {
	Name        string
	Table       string
	Fields      []Field
	ForeignKeys []ForeignKey
}

// Field returns the declared field called name.
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ForeignKey returns the foreign key stored in column.
func (k *Kind) ForeignKey(column string) (ForeignKey, bool) {
	for _, fk := range k.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Columns lists the table's columns: id, declared fields, foreign keys,
// then the timestamps.
func (k *Kind) Columns() []string {
	cols := make([]string, 0, len(k.Fields)+len(k.ForeignKeys)+3)
	cols = append(cols, orm.PrimaryKey)
	for _, f := range k.Fields {
		cols = append(cols, f.Name)
	}
	for _, fk := range k.ForeignKeys {
		cols = append(cols, fk.Column)
	}
	return append(cols, CreatedAt, UpdatedAt)
}

// Validate checks caller-supplied values against the kind and returns them
// as a row of canonical values. Declared fields and foreign key columns may
// be set; anything else is rejected. Unless partial is set, every required
// field must be present.
func (k *Kind) Validate(values map[string]any, partial bool) (orm.Row, error) {
	row := make(orm.Row, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		v := values[name]
		if f, ok := k.Field(name); ok {
			cv, err := f.Type.Check(v)
			if err != nil {
				return nil, &FieldError{Kind: k.Name, Field: name, Reason: err.Error()}
			}
			if cv == nil && f.Required {
				return nil, &FieldError{Kind: k.Name, Field: name, Reason: "required"}
			}
			row[name] = cv
			continue
		}
		if _, ok := k.ForeignKey(name); ok {
			cv, err := Integer.Check(v)
			if err != nil {
				return nil, &FieldError{Kind: k.Name, Field: name, Reason: err.Error()}
			}
			row[name] = cv
			continue
		}
		return nil, &FieldError{Kind: k.Name, Field: name, Reason: "unknown field"}
	}
	if partial {
		return row, nil
	}
	for _, f := range k.Fields {
		if _, ok := row[f.Name]; !ok && f.Required {
			return nil, &FieldError{Kind: k.Name, Field: f.Name, Reason: "required"}
		}
	}
	return row, nil
}

// Decode converts a row read from the kind's table into canonical values:
// id and foreign keys as int64, timestamps as time.Time and declared fields
// by their type. Columns the kind does not know are dropped.
func (k *Kind) Decode(row orm.Row) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for col, raw := range row {
		t, ok := k.columnType(col)
		if !ok {
			continue
		}
		v, err := t.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", k.Table, col, err)
		}
		out[col] = v
	}
	return out, nil
}

func (k *Kind) columnType(col string) (Type, bool) {
	switch col {
	case orm.PrimaryKey:
		return Integer, true
	case CreatedAt, UpdatedAt:
		return Time, true
	}
	if f, ok := k.Field(col); ok {
		return f.Type, true
	}
	if _, ok := k.ForeignKey(col); ok {
		return Integer, true
	}
	return 0, false
}

func (k *Kind) clone() *Kind {
	c := *k
	c.Fields = slices.Clone(k.Fields)
	c.ForeignKeys = slices.Clone(k.ForeignKeys)
	return &c
}

// JoinSide is one foreign key column of a join table.
type JoinSide struct {
	Kind   string
	Table  string
	Column string
}

// JoinTable is a two-column table linking two kinds many-to-many.
// Name is the declared join name (e.g. "GroupTracks").
type JoinTable struct {
	Name  string
	Table string
	Left  JoinSide
	Right JoinSide
}

// From returns the orm view of the join table read from the side of kind.
func (jt JoinTable) From(kind string) orm.JoinTable {
	ojt := orm.JoinTable{Table: jt.Table, SourceCol: jt.Left.Column, TargetCol: jt.Right.Column}
	if kind == jt.Right.Kind && kind != jt.Left.Kind {
		return ojt.Reverse()
	}
	return ojt
}
