package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SJBM1876/Musicians-and-Bands-Database/assoc"
	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/music"
)

func (a *app) linkCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "link <kind> <label> <method> [target...]",
		Short: "Run a relationship accessor",
		Long: `Run a generated relationship accessor on the entity of <kind> labelled
<label>. Targets are labels of the relation's target kind.

Examples:
  bandsdb link Group "Queen" AddTracks "Bohemian Rhapsody" "Radio Ga Ga"
  bandsdb link Group "Queen" GetTracks
  bandsdb link Track "Bohemian Rhapsody" CountGroups
  bandsdb link Performer "Brian May" SetGroup "Queen"
  bandsdb link Group --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.MinimumNArgs(3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return a.listMethods(cmd, args)
			}
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				return a.runLink(ctx, cmd, lib, args[0], args[1], args[2], args[3:])
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the accessor methods of a kind (all kinds when omitted)")
	return cmd
}

func (a *app) runLink(ctx context.Context, cmd *cobra.Command, lib *music.Library, kind, label, method string, targetLabels []string) error {
	m, err := lib.Linker().Catalog().Method(kind, method)
	if err != nil {
		return err
	}
	e, err := find(ctx, lib, kind, label)
	if err != nil {
		return err
	}
	targets := make([]*model.Entity, 0, len(targetLabels))
	for _, tl := range targetLabels {
		t, err := find(ctx, lib, m.Relation.Target, tl)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	var res assoc.Result
	err = lib.Transaction(ctx, func(tx *music.Library) error {
		var err error
		res, err = tx.Linker().Call(ctx, e, method, targets...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s.%s: %w", kind, method, err)
	}

	out := cmd.OutOrStdout()
	switch m.Op {
	case assoc.OpGet:
		k, err := lib.Store().Registry().Lookup(m.Relation.Target)
		if err != nil {
			return err
		}
		return a.printEntities(out, k, res.Entities)
	case assoc.OpCount:
		if a.jsonOutput {
			return a.printJSON(out, map[string]int64{"count": res.Count})
		}
		_, err = fmt.Fprintln(out, res.Count)
	case assoc.OpHas:
		if a.jsonOutput {
			return a.printJSON(out, map[string]bool{"has": res.Has})
		}
		_, err = fmt.Fprintln(out, res.Has)
	default:
		_, err = fmt.Fprintf(out, "%s %s.%s: ok\n", m.Op, kind, m.Relation.Name)
	}
	return err
}

func (a *app) listMethods(cmd *cobra.Command, args []string) error {
	reg, err := music.NewRegistry()
	if err != nil {
		return err
	}
	cat, err := music.NewCatalog(reg)
	if err != nil {
		return err
	}
	var kinds []string
	for _, k := range reg.Kinds() {
		kinds = append(kinds, k.Name)
	}
	if len(args) == 1 {
		if _, err := reg.Lookup(args[0]); err != nil {
			return err
		}
		kinds = args
	}
	methods := make(map[string][]string, len(kinds))
	for _, kind := range kinds {
		methods[kind] = cat.MethodNames(kind)
	}
	if a.jsonOutput {
		return a.printJSON(cmd.OutOrStdout(), methods)
	}
	for _, kind := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, strings.Join(methods[kind], ", "))
	}
	return nil
}
