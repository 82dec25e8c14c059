package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SJBM1876/Musicians-and-Bands-Database/internal/config"
	"github.com/SJBM1876/Musicians-and-Bands-Database/internal/logging"
	"github.com/SJBM1876/Musicians-and-Bands-Database/music"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

var version = "dev"

// app carries the state shared by every command of one invocation.
type app struct {
	v          *viper.Viper
	cfgFile    string
	jsonOutput bool

	cfg config.Config
	log *slog.Logger
}

// NewRootCmd returns the bandsdb command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "bandsdb",
		Short: "Musicians and bands database",
		Long: `bandsdb stores groups, performers and tracks in SQLite, PostgreSQL or
MySQL and manages the links between them.

A group has many performers; groups and tracks are linked many-to-many.

Examples:
  bandsdb sync
  bandsdb group add "Queen" --genre Rock
  bandsdb track add "Bohemian Rhapsody" --year 1975 --length 355
  bandsdb link Group "Queen" AddTracks "Bohemian Rhapsody"
  bandsdb group show "Queen"`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./bandsdb.yaml)")
	pf.String("dialect", "", "database dialect: sqlite, postgres or mysql")
	pf.String("dsn", "", "data source name; a file path for sqlite")
	pf.Bool("debug", false, "log every SQL statement")
	pf.String("log-format", "", "log format: text or json")
	pf.BoolVar(&a.jsonOutput, "json", false, "output in JSON format")

	_ = a.v.BindPFlag("dialect", pf.Lookup("dialect"))
	_ = a.v.BindPFlag("dsn", pf.Lookup("dsn"))
	_ = a.v.BindPFlag("debug", pf.Lookup("debug"))
	_ = a.v.BindPFlag("log_format", pf.Lookup("log-format"))

	root.AddCommand(
		a.syncCmd(),
		a.demoCmd(),
		a.kindCmd(music.Group, "group", "Manage groups"),
		a.kindCmd(music.Performer, "performer", "Manage performers"),
		a.kindCmd(music.Track, "track", "Manage tracks"),
		a.linkCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Debug)
	if used := a.v.ConfigFileUsed(); used != "" {
		logging.With(a.log, logging.CatConfig).Debug("loaded", "file", used)
	}
	return nil
}

// open connects to the configured database. The caller must Close the
// returned Library.
func (a *app) open(ctx context.Context) (*music.Library, error) {
	d, dsn, err := a.cfg.Target()
	if err != nil {
		return nil, err
	}
	db, err := orm.Open(ctx, d, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if a.cfg.Debug {
		db = db.Debug(logging.NewQueryLogger(a.log))
	}
	lib, err := music.Open(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.With(a.log, logging.CatDB).Debug("opened", "dialect", d.Name())
	return lib, nil
}

// withLibrary opens the database for the duration of fn.
func (a *app) withLibrary(cmd *cobra.Command, fn func(ctx context.Context, lib *music.Library) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	lib, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := lib.Close(); err != nil {
			logging.With(a.log, logging.CatDB).Warn("close failed", "err", err)
		}
	}()
	return fn(ctx, lib)
}
