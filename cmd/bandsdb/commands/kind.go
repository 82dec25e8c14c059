package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/music"
	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
	"github.com/SJBM1876/Musicians-and-Bands-Database/scope"
)

// kindCmd builds the add/list/show/update/rm commands of one kind. Field
// flags are generated from the kind's registered fields.
func (a *app) kindCmd(kind, use, short string) *cobra.Command {
	k, err := musicKind(kind)
	if err != nil {
		return &cobra.Command{Use: use, Short: short, RunE: func(*cobra.Command, []string) error { return err }}
	}
	label := music.LabelField(kind)

	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(
		a.addCmd(k, label),
		a.listCmd(k),
		a.showCmd(k),
		a.updateCmd(k, label),
		a.rmCmd(k, label),
	)
	return cmd
}

func musicKind(kind string) (*schema.Kind, error) {
	reg, err := music.NewRegistry()
	if err != nil {
		return nil, err
	}
	if _, err := music.NewCatalog(reg); err != nil {
		return nil, err
	}
	return reg.Lookup(kind)
}

func fieldFlags(fs *pflag.FlagSet, k *schema.Kind, label string) {
	for _, f := range k.Fields {
		if f.Name == label {
			continue
		}
		fs.String(f.Name, "", fmt.Sprintf("%s (%s)", f.Name, f.Type))
	}
}

// fieldValues decodes the field flags that were set on the command line.
func fieldValues(fs *pflag.FlagSet, k *schema.Kind, label string) (map[string]any, error) {
	values := make(map[string]any)
	for _, f := range k.Fields {
		if f.Name == label || !fs.Changed(f.Name) {
			continue
		}
		raw, _ := fs.GetString(f.Name)
		v, err := f.Type.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", f.Name, err)
		}
		values[f.Name] = v
	}
	return values, nil
}

func (a *app) addCmd(k *schema.Kind, label string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("add <%s>", label),
		Short: "Create a " + strings.ToLower(k.Name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := fieldValues(cmd.Flags(), k, label)
			if err != nil {
				return err
			}
			values[label] = args[0]
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				e, err := lib.Store().Create(ctx, k.Name, values)
				if err != nil {
					return err
				}
				return a.printEntities(cmd.OutOrStdout(), k, []*model.Entity{e})
			})
		},
	}
	fieldFlags(cmd.Flags(), k, label)
	return cmd
}

func (a *app) listCmd(k *schema.Kind) *cobra.Command {
	var (
		where []string
		order string
		desc  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + strings.ToLower(k.Table),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scopes, err := listScopes(k, where, order, desc, limit)
			if err != nil {
				return err
			}
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				entities, err := lib.Store().FindAll(ctx, k.Name, scopes...)
				if err != nil {
					return err
				}
				return a.printEntities(cmd.OutOrStdout(), k, entities)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "filter field=value (repeatable)")
	cmd.Flags().StringVar(&order, "order", "", "order by field")
	cmd.Flags().BoolVar(&desc, "desc", false, "descending order")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

// listScopes turns list flags into scopes. Field names are checked against
// the kind so that nothing but declared columns reaches the SQL.
func listScopes(k *schema.Kind, where []string, order string, desc bool, limit int) (scope.Scopes, error) {
	var scopes scope.Scopes
	for _, w := range where {
		name, raw, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("--where %q: want field=value", w)
		}
		f, ok := k.Field(name)
		if !ok {
			return nil, fmt.Errorf("--where: %s has no field %q", k.Name, name)
		}
		v, err := f.Type.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("--where %s: %w", name, err)
		}
		scopes = scopes.Append(scope.Eq(name, v))
	}
	if order != "" {
		if _, ok := k.Field(order); !ok && order != orm.PrimaryKey {
			return nil, fmt.Errorf("--order: %s has no field %q", k.Name, order)
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		scopes = scopes.Append(scope.OrderBy(order + " " + dir))
	}
	if limit > 0 {
		scopes = scopes.Append(scope.Limit(limit))
	}
	return scopes, nil
}

func (a *app) showCmd(k *schema.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "show <label>",
		Short: "Show a " + strings.ToLower(k.Name) + " and its relations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				e, err := find(ctx, lib, k.Name, args[0])
				if err != nil {
					return err
				}
				related, err := relatedOf(ctx, lib, e)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonOutput {
					views := make(map[string][]entityView, len(related))
					for name, es := range related {
						for _, r := range es {
							views[name] = append(views[name], viewOf(r))
						}
					}
					return a.printJSON(out, struct {
						Entity    entityView              `json:"entity"`
						Relations map[string][]entityView `json:"relations"`
					}{viewOf(e), views})
				}
				if err := a.printEntities(out, k, []*model.Entity{e}); err != nil {
					return err
				}
				for _, rel := range lib.Linker().Catalog().Relations(k.Name) {
					es := related[rel.Name]
					fmt.Fprintf(out, "\n%s (%d):\n", rel.Name, len(es))
					labelField := music.LabelField(rel.Target)
					for _, r := range es {
						fmt.Fprintf(out, "  %d\t%s\n", r.ID, r.String(labelField))
					}
				}
				return nil
			})
		},
	}
}

// relatedOf loads every relation of e, keyed by relation name.
func relatedOf(ctx context.Context, lib *music.Library, e *model.Entity) (map[string][]*model.Entity, error) {
	out := make(map[string][]*model.Entity)
	for name, acc := range lib.Linker().Accessors(e.Kind) {
		es, err := acc.Get(ctx, e)
		if err != nil {
			return nil, err
		}
		out[name] = es
	}
	return out, nil
}

func (a *app) updateCmd(k *schema.Kind, label string) *cobra.Command {
	var rename string

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("update <%s>", label),
		Short: "Change fields of a " + strings.ToLower(k.Name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := fieldValues(cmd.Flags(), k, label)
			if err != nil {
				return err
			}
			if rename != "" {
				changes[label] = rename
			}
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				e, err := find(ctx, lib, k.Name, args[0])
				if err != nil {
					return err
				}
				if err := lib.Store().Update(ctx, e, changes); err != nil {
					return err
				}
				return a.printEntities(cmd.OutOrStdout(), k, []*model.Entity{e})
			})
		},
	}
	fieldFlags(cmd.Flags(), k, label)
	cmd.Flags().StringVar(&rename, "rename", "", "new "+label)
	return cmd
}

func (a *app) rmCmd(k *schema.Kind, label string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("rm <%s>", label),
		Short: "Delete a " + strings.ToLower(k.Name),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				e, err := find(ctx, lib, k.Name, args[0])
				if err != nil {
					return err
				}
				if err := lib.Store().Destroy(ctx, e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %d\n", k.Name, e.ID)
				return nil
			})
		},
	}
}

// find returns the entity of kind labelled label, or orm.ErrNotFound.
func find(ctx context.Context, lib *music.Library, kind, label string) (*model.Entity, error) {
	e, err := lib.FindByLabel(ctx, kind, label)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s %q: %w", kind, label, orm.ErrNotFound)
	}
	return e, nil
}
