package schema_test

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	r := schema.NewRegistry()
	require.NoError(t, r.Register("Group", []schema.Field{
		schema.Required("name", schema.String),
		schema.Optional("genre", schema.String),
	}))
	require.NoError(t, r.Register("Performer", []schema.Field{
		schema.Required("name", schema.String),
		schema.Optional("instrument", schema.String),
	}))
	require.NoError(t, r.Register("Track", []schema.Field{
		schema.Required("title", schema.String),
		schema.Optional("year", schema.Integer),
		schema.Optional("length", schema.Integer),
	}))
	require.NoError(t, r.AddForeignKey("Performer", schema.ForeignKey{
		Column: "group_id", RefKind: "Group", OnDelete: "SET NULL",
	}))
	require.NoError(t, r.AddJoinTable(schema.JoinTable{
		Name:  "GroupTracks",
		Table: "group_tracks",
		Left:  schema.JoinSide{Kind: "Group", Column: "group_id"},
		Right: schema.JoinSide{Kind: "Track", Column: "track_id"},
	}))
	return r
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	k, err := r.Lookup("Track")
	require.NoError(t, err)
	require.Equal(t, "tracks", k.Table)
	require.Equal(t, []string{"id", "title", "year", "length", "created_at", "updated_at"}, k.Columns())

	f, ok := k.Field("year")
	require.True(t, ok)
	require.Equal(t, schema.Integer, f.Type)
	require.False(t, f.Required)

	_, err = r.Lookup("Album")
	require.ErrorIs(t, err, schema.ErrUnknownKind)
	require.ErrorContains(t, err, "Album")

	names := make([]string, 0, 3)
	for _, k := range r.Kinds() {
		names = append(names, k.Name)
	}
	require.Equal(t, []string{"Group", "Performer", "Track"}, names)
}

func TestRegisterRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    string
		fields  []schema.Field
		opts    []schema.Option
		wantErr error
	}{
		{"duplicate kind", "Group", nil, nil, schema.ErrDuplicateKind},
		{"lowercase kind", "album", nil, nil, schema.ErrInvalidDefinition},
		{"reserved id", "Album", []schema.Field{schema.Optional("id", schema.Integer)}, nil, schema.ErrInvalidDefinition},
		{"reserved timestamp", "Album", []schema.Field{schema.Optional("created_at", schema.Time)}, nil, schema.ErrInvalidDefinition},
		{"bad identifier", "Album", []schema.Field{schema.Optional("Title", schema.String)}, nil, schema.ErrInvalidDefinition},
		{"duplicate field", "Album", []schema.Field{
			schema.Optional("title", schema.String),
			schema.Optional("title", schema.String),
		}, nil, schema.ErrInvalidDefinition},
		{"zero type", "Album", []schema.Field{{Name: "title"}}, nil, schema.ErrInvalidDefinition},
		{"table clash", "Album", nil, []schema.Option{schema.WithTable("tracks")}, schema.ErrInvalidDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRegistry(t)
			err := r.Register(tt.kind, tt.fields, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithTable(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	require.NoError(t, r.Register("Person", nil, schema.WithTable("musicians")))

	k, err := r.Lookup("Person")
	require.NoError(t, err)
	require.Equal(t, "musicians", k.Table)
}

func TestAddForeignKey(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	before, err := r.Lookup("Track")
	require.NoError(t, err)

	// Same key again is a no-op.
	require.NoError(t, r.AddForeignKey("Performer", schema.ForeignKey{
		Column: "group_id", RefKind: "Group", OnDelete: "SET NULL",
	}))
	k, err := r.Lookup("Performer")
	require.NoError(t, err)
	require.Len(t, k.ForeignKeys, 1)
	require.Equal(t, "groups", k.ForeignKeys[0].RefTable)

	err = r.AddForeignKey("Performer", schema.ForeignKey{Column: "group_id", RefKind: "Track"})
	require.ErrorIs(t, err, schema.ErrInvalidDefinition)

	err = r.AddForeignKey("Performer", schema.ForeignKey{Column: "name", RefKind: "Group"})
	require.ErrorIs(t, err, schema.ErrInvalidDefinition)

	err = r.AddForeignKey("Album", schema.ForeignKey{Column: "group_id", RefKind: "Group"})
	require.ErrorIs(t, err, schema.ErrUnknownKind)

	err = r.AddForeignKey("Track", schema.ForeignKey{Column: "album_id", RefKind: "Album"})
	require.ErrorIs(t, err, schema.ErrUnknownKind)

	require.NoError(t, r.AddForeignKey("Track", schema.ForeignKey{Column: "cover_of_id", RefKind: "Track"}))
	require.Empty(t, before.ForeignKeys, "kinds handed out earlier are not modified")
}

func TestAddJoinTable(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	gt := schema.JoinTable{
		Name:  "GroupTracks",
		Table: "group_tracks",
		Left:  schema.JoinSide{Kind: "Group", Column: "group_id"},
		Right: schema.JoinSide{Kind: "Track", Column: "track_id"},
	}

	require.NoError(t, r.AddJoinTable(gt))
	require.Len(t, r.JoinTables(), 1)

	clash := gt
	clash.Name = "Setlist"
	require.ErrorIs(t, r.AddJoinTable(clash), schema.ErrInvalidDefinition)

	sameCols := gt
	sameCols.Table = "group_group"
	sameCols.Right.Column = "group_id"
	require.ErrorIs(t, r.AddJoinTable(sameCols), schema.ErrInvalidDefinition)

	unknown := gt
	unknown.Table = "group_albums"
	unknown.Right = schema.JoinSide{Kind: "Album", Column: "album_id"}
	require.ErrorIs(t, r.AddJoinTable(unknown), schema.ErrUnknownKind)

	jt := r.JoinTables()[0]
	require.Equal(t, "groups", jt.Left.Table)
	require.Equal(t, orm.JoinTable{Table: "group_tracks", SourceCol: "group_id", TargetCol: "track_id"}, jt.From("Group"))
	require.Equal(t, orm.JoinTable{Table: "group_tracks", SourceCol: "track_id", TargetCol: "group_id"}, jt.From("Track"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	track, err := r.Lookup("Track")
	require.NoError(t, err)
	performer, err := r.Lookup("Performer")
	require.NoError(t, err)

	row, err := track.Validate(map[string]any{"title": "Hey Jude", "year": 1968}, false)
	require.NoError(t, err)
	require.Equal(t, orm.Row{"title": "Hey Jude", "year": int64(1968)}, row)

	row, err = performer.Validate(map[string]any{"name": "Freddie", "group_id": 3}, false)
	require.NoError(t, err)
	require.Equal(t, int64(3), row["group_id"])

	tests := []struct {
		name    string
		values  map[string]any
		partial bool
		field   string
	}{
		{"missing required", map[string]any{"year": 1968}, false, "title"},
		{"required set to nil", map[string]any{"title": nil}, true, "title"},
		{"wrong type", map[string]any{"title": "Yesterday", "year": "1965"}, false, "year"},
		{"unknown field", map[string]any{"title": "Yesterday", "bpm": 97}, false, "bpm"},
		{"id is not settable", map[string]any{"id": 7}, true, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := track.Validate(tt.values, tt.partial)
			require.ErrorIs(t, err, orm.ErrConstraintViolation)

			var fe *schema.FieldError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, "Track", fe.Kind)
			require.Equal(t, tt.field, fe.Field)
		})
	}

	row, err = track.Validate(map[string]any{"year": 1970}, true)
	require.NoError(t, err)
	require.Equal(t, orm.Row{"year": int64(1970)}, row)
}

func TestDecodeDropsUnknownColumns(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	performer, err := r.Lookup("Performer")
	require.NoError(t, err)

	got, err := performer.Decode(orm.Row{
		"id":         int64(4),
		"name":       []byte("Brian May"),
		"group_id":   nil,
		"created_at": "2024-03-01 09:30:15+00:00",
		"rowid":      int64(4),
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), got["id"])
	require.Equal(t, "Brian May", got["name"])
	require.Contains(t, got, "group_id")
	require.Nil(t, got["group_id"])
	require.NotContains(t, got, "rowid")
}

func TestCreateStatements(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	tests := []struct {
		dialect orm.Dialect
		want    []string
	}{
		{orm.SQLite, []string{
			`CREATE TABLE IF NOT EXISTS "groups" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT NOT NULL, "genre" TEXT, "created_at" DATETIME NOT NULL, "updated_at" DATETIME NOT NULL)`,
			`CREATE TABLE IF NOT EXISTS "performers" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT NOT NULL, "instrument" TEXT, "group_id" INTEGER, "created_at" DATETIME NOT NULL, "updated_at" DATETIME NOT NULL, FOREIGN KEY ("group_id") REFERENCES "groups" ("id") ON DELETE SET NULL)`,
			`CREATE TABLE IF NOT EXISTS "tracks" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "title" TEXT NOT NULL, "year" INTEGER, "length" INTEGER, "created_at" DATETIME NOT NULL, "updated_at" DATETIME NOT NULL)`,
			`CREATE TABLE IF NOT EXISTS "group_tracks" ("group_id" INTEGER NOT NULL, "track_id" INTEGER NOT NULL, PRIMARY KEY ("group_id", "track_id"), FOREIGN KEY ("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE, FOREIGN KEY ("track_id") REFERENCES "tracks" ("id") ON DELETE CASCADE)`,
		}},
		{orm.MySQL, []string{
			"CREATE TABLE IF NOT EXISTS `groups` (`id` BIGINT AUTO_INCREMENT PRIMARY KEY, `name` VARCHAR(255) NOT NULL, `genre` VARCHAR(255), `created_at` DATETIME(6) NOT NULL, `updated_at` DATETIME(6) NOT NULL)",
		}},
		{orm.PostgreSQL, []string{
			`CREATE TABLE IF NOT EXISTS "groups" ("id" BIGSERIAL PRIMARY KEY, "name" VARCHAR(255) NOT NULL, "genre" VARCHAR(255), "created_at" TIMESTAMPTZ NOT NULL, "updated_at" TIMESTAMPTZ NOT NULL)`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			t.Parallel()

			got := r.CreateStatements(tt.dialect)
			require.Len(t, got, 4)
			require.Equal(t, tt.want, got[:len(tt.want)])
		})
	}
}

func TestCreateStatementsOrdersReferencedTablesFirst(t *testing.T) {
	t.Parallel()

	r := schema.NewRegistry()
	require.NoError(t, r.Register("Performer", []schema.Field{schema.Required("name", schema.String)}))
	require.NoError(t, r.Register("Group", []schema.Field{schema.Required("name", schema.String)}))
	require.NoError(t, r.AddForeignKey("Performer", schema.ForeignKey{Column: "group_id", RefKind: "Group"}))

	stmts := r.CreateStatements(orm.SQLite)
	require.Len(t, stmts, 2)
	require.Contains(t, stmts[0], `"groups"`)
	require.Contains(t, stmts[1], `"performers"`)

	drops := r.DropStatements(orm.SQLite)
	require.Equal(t, []string{`DROP TABLE IF EXISTS "performers"`, `DROP TABLE IF EXISTS "groups"`}, drops)
}

func TestStatementsRunOnSQLite(t *testing.T) {
	r := newRegistry(t)
	db, err := orm.Open(t.Context(), orm.SQLite, orm.SQLiteDSN(filepath.Join(t.TempDir(), "ddl.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for range 2 {
		for _, stmt := range r.CreateStatements(orm.SQLite) {
			_, err := db.ExecContext(t.Context(), stmt)
			require.NoError(t, err, stmt)
		}
	}
	for _, stmt := range r.DropStatements(orm.SQLite) {
		_, err := db.ExecContext(t.Context(), stmt)
		require.NoError(t, err, stmt)
		require.True(t, strings.HasPrefix(stmt, "DROP TABLE IF EXISTS"))
	}
}

func TestRegistryConcurrentReads(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if _, err := r.Lookup("Group"); err != nil {
					t.Error(err)
					return
				}
				_ = r.Kinds()
			}
		}()
	}
	wg.Wait()
}
