package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SJBM1876/Musicians-and-Bands-Database/internal/logging"
	"github.com/SJBM1876/Musicians-and-Bands-Database/music"
)

func (a *app) syncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create the tables",
		Long: `Create the group, performer, track and group_tracks tables if they do
not exist. With --force the tables are dropped first and all data is lost.

Examples:
  bandsdb sync
  bandsdb sync --force
  bandsdb sync --dry-run --dialect postgres`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				return a.printDDL(cmd)
			}
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				force := a.v.GetBool("force_sync")
				if err := lib.Sync(ctx, force); err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				logging.With(a.log, logging.CatDB).Info("schema synced", "force", force)
				return nil
			})
		},
	}

	cmd.Flags().Bool("force", false, "drop existing tables first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without running them")
	_ = a.v.BindPFlag("force_sync", cmd.Flags().Lookup("force"))
	return cmd
}

func (a *app) printDDL(cmd *cobra.Command) error {
	d, _, err := a.cfg.Target()
	if err != nil {
		return err
	}
	reg, err := music.NewRegistry()
	if err != nil {
		return err
	}
	if _, err := music.NewCatalog(reg); err != nil {
		return err
	}
	stmts := reg.CreateStatements(d)
	if a.v.GetBool("force_sync") {
		stmts = append(reg.DropStatements(d), stmts...)
	}
	for _, s := range stmts {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), s+";"); err != nil {
			return err
		}
	}
	return nil
}
