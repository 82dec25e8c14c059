// Package model implements the entity lifecycle on top of the schema
// registry: create, find, update and destroy of rows as Entity records.
package model

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrNotPersisted is returned when an operation needs an entity that has
// not been saved to the backend yet.
var ErrNotPersisted = errors.New("model: entity not persisted")

// Entity is one row of a registered kind. Values holds the declared fields
// and foreign key columns in canonical form; a nil value is NULL.
type Entity struct {
	Kind      string
	ID        int64
	Values    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an unsaved entity of kind.
func New(kind string, values map[string]any) *Entity {
	return &Entity{Kind: kind, Values: maps.Clone(values)}
}

// Persisted reports whether e has a backend-assigned id.
func (e *Entity) Persisted() bool { return e != nil && e.ID != 0 }

// Get returns the value of a field, or nil.
func (e *Entity) Get(name string) any { return e.Values[name] }

// String returns a string field, or "" when unset.
func (e *Entity) String(name string) string {
	s, _ := e.Values[name].(string)
	return s
}

// Int returns an integer field and whether it is set.
func (e *Entity) Int(name string) (int64, bool) {
	n, ok := e.Values[name].(int64)
	return n, ok
}

// Clone returns a copy of e that shares no maps with it.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Values = maps.Clone(e.Values)
	return &c
}

// RequirePersisted returns ErrNotPersisted unless every entity has an id.
func RequirePersisted(entities ...*Entity) error {
	for _, e := range entities {
		if !e.Persisted() {
			kind := "<nil>"
			if e != nil {
				kind = e.Kind
			}
			return fmt.Errorf("%w: %s", ErrNotPersisted, kind)
		}
	}
	return nil
}
