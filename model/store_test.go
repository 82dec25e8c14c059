package model_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// setupStore opens a SQLite database in a temp dir, registers the three
// music kinds and creates their tables.
func setupStore(t *testing.T) *model.Store {
	t.Helper()

	reg := schema.NewRegistry()
	require.NoError(t, reg.Register("Group", []schema.Field{
		schema.Required("name", schema.String),
		schema.Optional("genre", schema.String),
	}))
	require.NoError(t, reg.Register("Performer", []schema.Field{
		schema.Required("name", schema.String),
		schema.Optional("instrument", schema.String),
	}))
	require.NoError(t, reg.Register("Track", []schema.Field{
		schema.Required("title", schema.String),
		schema.Optional("year", schema.Integer),
		schema.Optional("length", schema.Integer),
	}))
	require.NoError(t, reg.AddForeignKey("Performer", schema.ForeignKey{
		Column: "group_id", RefKind: "Group", OnDelete: "SET NULL",
	}))

	db, err := orm.Open(t.Context(), orm.SQLite, orm.SQLiteDSN(filepath.Join(t.TempDir(), "model.db")))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	store := model.NewStore(db, reg)
	require.NoError(t, store.Sync(t.Context(), false))
	return store
}

func TestCreateAndFind(t *testing.T) {
	store := setupStore(t)
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := orm.WithClock(t.Context(), orm.FixedClock(when))

	track, err := store.Create(ctx, "Track", map[string]any{"title": "Hey Jude", "year": 1968, "length": 431})
	require.NoError(t, err)
	require.True(t, track.Persisted())
	require.Equal(t, when, track.CreatedAt)
	require.Equal(t, when, track.UpdatedAt)

	found, err := store.Find(ctx, "Track", track.ID)
	require.NoError(t, err)
	require.Equal(t, "Hey Jude", found.String("title"))
	year, ok := found.Int("year")
	require.True(t, ok)
	require.Equal(t, int64(1968), year)
	require.True(t, when.Equal(found.CreatedAt), "created_at %v", found.CreatedAt)
	require.Equal(t, track.Values, found.Values)
}

func TestCreateRejectsInvalidValues(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	tests := []struct {
		name   string
		kind   string
		values map[string]any
	}{
		{"missing required", "Track", map[string]any{"year": 1968}},
		{"wrong type", "Track", map[string]any{"title": "Hey Jude", "year": "1968"}},
		{"unknown field", "Group", map[string]any{"name": "Queen", "label": "EMI"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(ctx, tt.kind, tt.values)
			require.ErrorIs(t, err, orm.ErrConstraintViolation)
		})
	}

	_, err := store.Create(ctx, "Album", map[string]any{"title": "Abbey Road"})
	require.ErrorIs(t, err, schema.ErrUnknownKind)

	count, err := store.Count(ctx, "Track")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateWithDanglingForeignKey(t *testing.T) {
	store := setupStore(t)

	_, err := store.Create(t.Context(), "Performer", map[string]any{"name": "Pete Best", "group_id": 404})
	require.ErrorIs(t, err, orm.ErrConstraintViolation)

	var ce *orm.ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "performers", ce.Table)
}

func TestFindMissing(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	_, err := store.Find(ctx, "Group", 99)
	require.ErrorIs(t, err, orm.ErrNotFound)

	e, err := store.FindOne(ctx, "Group", scope.Eq("name", "Nobody"))
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestFindOneAndFindAll(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	for _, name := range []string{"Queen", "The Beatles", "Queen"} {
		_, err := store.Create(ctx, "Group", map[string]any{"name": name})
		require.NoError(t, err)
	}

	first, err := store.FindOne(ctx, "Group", scope.Eq("name", "Queen"))
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, int64(1), first.ID)

	all, err := store.FindAll(ctx, "Group")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		require.Equal(t, int64(i+1), e.ID)
	}

	byName, err := store.FindAll(ctx, "Group", scope.OrderBy(`"name" DESC`), scope.Limit(2))
	require.NoError(t, err)
	require.Len(t, byName, 2)
	require.Equal(t, "The Beatles", byName[0].String("name"))
	require.Equal(t, int64(1), byName[1].ID)

	none, err := store.FindAll(ctx, "Group", scope.Eq("name", "ABBA"))
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	n, err := store.Count(ctx, "Group", scope.Eq("name", "Queen"))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestUpdateMergesFields(t *testing.T) {
	store := setupStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	group, err := store.Create(orm.WithClock(t.Context(), orm.FixedClock(created)), "Group",
		map[string]any{"name": "The Beatles", "genre": "Rock"})
	require.NoError(t, err)

	ctx := orm.WithClock(t.Context(), orm.FixedClock(updated))
	require.NoError(t, store.Update(ctx, group, map[string]any{"genre": "Pop"}))
	require.Equal(t, "Pop", group.String("genre"))
	require.Equal(t, "The Beatles", group.String("name"))
	require.Equal(t, updated, group.UpdatedAt)

	reloaded, err := store.Find(ctx, "Group", group.ID)
	require.NoError(t, err)
	require.Equal(t, "Pop", reloaded.String("genre"))
	require.Equal(t, "The Beatles", reloaded.String("name"))
	require.True(t, created.Equal(reloaded.CreatedAt))
	require.True(t, updated.Equal(reloaded.UpdatedAt))

	// Clearing an optional field stores NULL.
	require.NoError(t, store.Update(ctx, group, map[string]any{"genre": nil}))
	require.NoError(t, store.Reload(ctx, group))
	require.Nil(t, group.Get("genre"))

	err = store.Update(ctx, group, map[string]any{"name": nil})
	require.ErrorIs(t, err, orm.ErrConstraintViolation)
	require.Equal(t, "The Beatles", group.String("name"), "failed update leaves the entity unchanged")

	require.NoError(t, store.Update(ctx, group, nil), "empty update is a no-op")
}

func TestUpdateDestroyedEntity(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	group, err := store.Create(ctx, "Group", map[string]any{"name": "Wings"})
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, group))

	err = store.Update(ctx, group, map[string]any{"name": "Wings II"})
	require.ErrorIs(t, err, orm.ErrNotFound)
}

func TestDestroy(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	group, err := store.Create(ctx, "Group", map[string]any{"name": "Queen"})
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, group))

	found, err := store.FindOne(ctx, "Group", scope.Eq("name", "Queen"))
	require.NoError(t, err)
	require.Nil(t, found)

	// Already gone.
	require.NoError(t, store.Destroy(ctx, group))
}

func TestOperationsRequirePersistedEntity(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()
	draft := model.New("Group", map[string]any{"name": "Draft"})

	require.ErrorIs(t, store.Update(ctx, draft, map[string]any{"name": "x"}), model.ErrNotPersisted)
	require.ErrorIs(t, store.Destroy(ctx, draft), model.ErrNotPersisted)
	require.ErrorIs(t, store.Reload(ctx, draft), model.ErrNotPersisted)
	require.ErrorIs(t, model.RequirePersisted(nil), model.ErrNotPersisted)
}

func TestSyncForceDropsData(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	_, err := store.Create(ctx, "Group", map[string]any{"name": "Queen"})
	require.NoError(t, err)

	require.NoError(t, store.Sync(ctx, false))
	n, err := store.Count(ctx, "Group")
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "plain sync keeps rows")

	require.NoError(t, store.Sync(ctx, true))
	n, err = store.Count(ctx, "Group")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTransaction(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()
	errAbort := errors.New("abort")

	err := store.Transaction(ctx, func(tx *model.Store) error {
		if _, err := tx.Create(ctx, "Group", map[string]any{"name": "Queen"}); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.Transaction(ctx, func(inner *model.Store) error {
			require.Same(t, tx, inner)
			return errAbort
		})
	})
	require.ErrorIs(t, err, errAbort)

	n, err := store.Count(ctx, "Group")
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, store.Transaction(ctx, func(tx *model.Store) error {
		_, err := tx.Create(ctx, "Group", map[string]any{"name": "Queen"})
		return err
	}))
	n, err = store.Count(ctx, "Group")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

// TestCreateFindRoundTrip is a property-based test: whatever valid values
// are created come back unchanged from Find.
func TestCreateFindRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	rapid.Check(t, func(r *rapid.T) {
		values := map[string]any{
			"title": rapid.StringMatching(`[\p{L}\p{N} '&.-]{1,40}`).Draw(r, "title"),
		}
		if rapid.Bool().Draw(r, "hasYear") {
			values["year"] = rapid.Int64Range(-1<<40, 1<<40).Draw(r, "year")
		}
		if rapid.Bool().Draw(r, "hasLength") {
			values["length"] = rapid.Int64Range(0, 1<<20).Draw(r, "length")
		}

		created, err := store.Create(ctx, "Track", values)
		if err != nil {
			r.Fatalf("Create: %v", err)
		}
		found, err := store.Find(ctx, "Track", created.ID)
		if err != nil {
			r.Fatalf("Find: %v", err)
		}
		for _, field := range []string{"title", "year", "length"} {
			if found.Get(field) != values[field] {
				r.Fatalf("%s = %#v, want %#v", field, found.Get(field), values[field])
			}
		}
	})
}

// TestPartialUpdateIsolation checks that an update never changes fields
// it does not name.
func TestPartialUpdateIsolation(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	rapid.Check(t, func(r *rapid.T) {
		track, err := store.Create(ctx, "Track", map[string]any{
			"title":  rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(r, "title"),
			"year":   rapid.Int64Range(1900, 2030).Draw(r, "year"),
			"length": rapid.Int64Range(1, 3600).Draw(r, "length"),
		})
		if err != nil {
			r.Fatalf("Create: %v", err)
		}
		before := track.Clone()

		field := rapid.SampledFrom([]string{"title", "year", "length"}).Draw(r, "field")
		var value any
		if field == "title" {
			value = rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(r, "value")
		} else {
			value = rapid.Int64Range(0, 5000).Draw(r, "value")
		}
		if err := store.Update(ctx, track, map[string]any{field: value}); err != nil {
			r.Fatalf("Update: %v", err)
		}

		found, err := store.Find(ctx, "Track", track.ID)
		if err != nil {
			r.Fatalf("Find: %v", err)
		}
		for _, other := range []string{"title", "year", "length"} {
			want := before.Get(other)
			if other == field {
				want = value
			}
			if found.Get(other) != want {
				r.Fatalf("%s = %#v, want %#v", other, found.Get(other), want)
			}
		}
	})
}
