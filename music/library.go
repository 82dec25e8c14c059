// Package music wires the Group, Performer and Track kinds and their
// associations onto the relational engine and offers typed helpers over
// the generic accessors.
package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/SJBM1876/Musicians-and-Bands-Database/assoc"
	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// Kind names.
const (
	Group     = "Group"
	Performer = "Performer"
	Track     = "Track"
)

// Relation names generated by the declarations in NewCatalog.
const (
	GroupPerformers = "Performers"
	PerformerGroup  = "Group"
	GroupTracks     = "Tracks"
	TrackGroups     = "Groups"
)

// JoinName is the declared name of the Group↔Track join.
const JoinName = "GroupTracks"

// NewRegistry returns a registry holding the three music kinds.
func NewRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	defs := []struct {
		name   string
		fields []schema.Field
	}{
		{Group, []schema.Field{
			schema.Required("name", schema.String),
			schema.Optional("genre", schema.String),
		}},
		{Performer, []schema.Field{
			schema.Required("name", schema.String),
			schema.Optional("instrument", schema.String),
		}},
		{Track, []schema.Field{
			schema.Required("title", schema.String),
			schema.Optional("year", schema.Integer),
			schema.Optional("length", schema.Integer),
		}},
	}
	for _, d := range defs {
		if err := reg.Register(d.name, d.fields); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewCatalog declares Group→Performer and Group↔Track on reg.
func NewCatalog(reg *schema.Registry) (*assoc.Catalog, error) {
	cat := assoc.NewCatalog(reg)
	if err := cat.DeclareOneToMany(Group, Performer); err != nil {
		return nil, err
	}
	if err := cat.DeclareManyToMany(Group, Track, JoinName); err != nil {
		return nil, err
	}
	return cat, nil
}

// Library is the music data model bound to one database handle.
type Library struct {
	db     *orm.DB
	linker *assoc.Linker
}

// Open builds the music schema over db. The Library takes ownership of db
// and releases it on Close. Tables are not created; call Sync.
func Open(ctx context.Context, db *orm.DB) (*Library, error) {
	if db == nil {
		return nil, errors.New("music: nil database")
	}
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	reg, err := NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	cat, err := NewCatalog(reg)
	if err != nil {
		return nil, fmt.Errorf("music: %w", err)
	}
	return &Library{
		db:     db,
		linker: assoc.NewLinker(model.NewStore(db, reg), cat),
	}, nil
}

// Close releases the database handle.
func (lib *Library) Close() error {
	if lib.db == nil {
		return nil
	}
	return lib.db.Close()
}

// Store returns the entity store.
func (lib *Library) Store() *model.Store { return lib.linker.Store() }

// Linker returns the relationship accessors.
func (lib *Library) Linker() *assoc.Linker { return lib.linker }

// Sync creates the tables, dropping existing ones first when force is set.
func (lib *Library) Sync(ctx context.Context, force bool) error {
	return lib.Store().Sync(ctx, force)
}

// Transaction runs fn against a Library bound to a transaction. The
// transactional Library must not be closed.
func (lib *Library) Transaction(ctx context.Context, fn func(tx *Library) error) error {
	return lib.linker.Transaction(ctx, func(tx *assoc.Linker) error {
		return fn(&Library{linker: tx})
	})
}

// CreateGroup inserts a Group. An empty genre is stored as NULL.
func (lib *Library) CreateGroup(ctx context.Context, name, genre string) (*model.Entity, error) {
	values := map[string]any{"name": name}
	if genre != "" {
		values["genre"] = genre
	}
	return lib.Store().Create(ctx, Group, values)
}

// CreatePerformer inserts a Performer with no group.
func (lib *Library) CreatePerformer(ctx context.Context, name, instrument string) (*model.Entity, error) {
	values := map[string]any{"name": name}
	if instrument != "" {
		values["instrument"] = instrument
	}
	return lib.Store().Create(ctx, Performer, values)
}

// CreateTrack inserts a Track. length is in seconds; zero year or length
// is stored as NULL.
func (lib *Library) CreateTrack(ctx context.Context, title string, year, length int) (*model.Entity, error) {
	values := map[string]any{"title": title}
	if year != 0 {
		values["year"] = year
	}
	if length != 0 {
		values["length"] = length
	}
	return lib.Store().Create(ctx, Track, values)
}

// LabelField returns the field that names entities of kind: "title" for
// tracks, "name" otherwise.
func LabelField(kind string) string {
	if kind == Track {
		return "title"
	}
	return "name"
}

// FindByLabel returns the first entity of kind whose label field equals
// label, or nil.
func (lib *Library) FindByLabel(ctx context.Context, kind, label string) (*model.Entity, error) {
	return lib.Store().FindOne(ctx, kind, scope.Eq(LabelField(kind), label))
}

// FindGroup returns the first Group called name, or nil.
func (lib *Library) FindGroup(ctx context.Context, name string) (*model.Entity, error) {
	return lib.FindByLabel(ctx, Group, name)
}

// FindPerformer returns the first Performer called name, or nil.
func (lib *Library) FindPerformer(ctx context.Context, name string) (*model.Entity, error) {
	return lib.FindByLabel(ctx, Performer, name)
}

// FindTrack returns the first Track titled title, or nil.
func (lib *Library) FindTrack(ctx context.Context, title string) (*model.Entity, error) {
	return lib.FindByLabel(ctx, Track, title)
}

// Tracks returns the tracks of group.
func (lib *Library) Tracks(ctx context.Context, group *model.Entity, scopes ...scope.Scope) ([]*model.Entity, error) {
	return lib.linker.GetRelated(ctx, group, GroupTracks, scopes...)
}

// AddTracks links tracks to group.
func (lib *Library) AddTracks(ctx context.Context, group *model.Entity, tracks ...*model.Entity) error {
	return lib.linker.AddRelated(ctx, group, GroupTracks, tracks...)
}

// SetTracks makes tracks exactly the tracks of group.
func (lib *Library) SetTracks(ctx context.Context, group *model.Entity, tracks ...*model.Entity) error {
	return lib.linker.SetRelated(ctx, group, GroupTracks, tracks...)
}

// RemoveTracks unlinks tracks from group.
func (lib *Library) RemoveTracks(ctx context.Context, group *model.Entity, tracks ...*model.Entity) error {
	return lib.linker.RemoveRelated(ctx, group, GroupTracks, tracks...)
}

// CountTracks counts the tracks of group.
func (lib *Library) CountTracks(ctx context.Context, group *model.Entity) (int64, error) {
	return lib.linker.CountRelated(ctx, group, GroupTracks)
}

// Groups returns the groups that recorded track.
func (lib *Library) Groups(ctx context.Context, track *model.Entity, scopes ...scope.Scope) ([]*model.Entity, error) {
	return lib.linker.GetRelated(ctx, track, TrackGroups, scopes...)
}

// Performers returns the members of group.
func (lib *Library) Performers(ctx context.Context, group *model.Entity, scopes ...scope.Scope) ([]*model.Entity, error) {
	return lib.linker.GetRelated(ctx, group, GroupPerformers, scopes...)
}

// AddPerformers moves performers into group.
func (lib *Library) AddPerformers(ctx context.Context, group *model.Entity, performers ...*model.Entity) error {
	return lib.linker.AddRelated(ctx, group, GroupPerformers, performers...)
}

// SetPerformers makes performers exactly the members of group. Members
// not listed are left without a group.
func (lib *Library) SetPerformers(ctx context.Context, group *model.Entity, performers ...*model.Entity) error {
	return lib.linker.SetRelated(ctx, group, GroupPerformers, performers...)
}

// RemovePerformers takes performers out of group.
func (lib *Library) RemovePerformers(ctx context.Context, group *model.Entity, performers ...*model.Entity) error {
	return lib.linker.RemoveRelated(ctx, group, GroupPerformers, performers...)
}

// CountPerformers counts the members of group.
func (lib *Library) CountPerformers(ctx context.Context, group *model.Entity) (int64, error) {
	return lib.linker.CountRelated(ctx, group, GroupPerformers)
}

// GroupOf returns the group of performer, or nil.
func (lib *Library) GroupOf(ctx context.Context, performer *model.Entity) (*model.Entity, error) {
	return lib.linker.GetParent(ctx, performer, PerformerGroup)
}

// SetGroup moves performer into group; a nil group leaves it without one.
func (lib *Library) SetGroup(ctx context.Context, performer, group *model.Entity) error {
	return lib.linker.SetParent(ctx, performer, PerformerGroup, group)
}
