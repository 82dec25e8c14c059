package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/music"
)

var errDiscard = errors.New("demo: discard")

func (a *app) demoCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Load the Beatles and Queen example and print its links",
		Long: `Create two groups, their members and tracks, link them and print the
result. The data is rolled back afterwards unless --keep is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withLibrary(cmd, func(ctx context.Context, lib *music.Library) error {
				if err := lib.Sync(ctx, false); err != nil {
					return err
				}
				err := lib.Transaction(ctx, func(tx *music.Library) error {
					if err := runDemo(ctx, tx, cmd.OutOrStdout()); err != nil {
						return err
					}
					if !keep {
						return errDiscard
					}
					return nil
				})
				if errors.Is(err, errDiscard) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "commit the demo data")
	return cmd
}

func runDemo(ctx context.Context, lib *music.Library, w io.Writer) error {
	beatles, err := lib.CreateGroup(ctx, "The Beatles", "Rock")
	if err != nil {
		return err
	}
	queen, err := lib.CreateGroup(ctx, "Queen", "Rock")
	if err != nil {
		return err
	}

	tracks := map[string]*model.Entity{}
	for _, t := range []struct {
		title        string
		year, length int
	}{
		{"Hey Jude", 1968, 431},
		{"Bohemian Rhapsody", 1975, 355},
	} {
		e, err := lib.CreateTrack(ctx, t.title, t.year, t.length)
		if err != nil {
			return err
		}
		tracks[t.title] = e
	}

	for _, m := range []struct {
		group            *model.Entity
		name, instrument string
	}{
		{beatles, "John Lennon", "Guitar"},
		{beatles, "Paul McCartney", "Bass"},
		{queen, "Freddie Mercury", "Vocals"},
		{queen, "Brian May", "Guitar"},
	} {
		e, err := lib.CreatePerformer(ctx, m.name, m.instrument)
		if err != nil {
			return err
		}
		if err := lib.AddPerformers(ctx, m.group, e); err != nil {
			return err
		}
	}

	if err := lib.AddTracks(ctx, beatles, tracks["Hey Jude"], tracks["Bohemian Rhapsody"]); err != nil {
		return err
	}
	if err := lib.AddTracks(ctx, queen, tracks["Bohemian Rhapsody"]); err != nil {
		return err
	}

	for _, group := range []*model.Entity{beatles, queen} {
		ts, err := lib.Tracks(ctx, group)
		if err != nil {
			return err
		}
		ps, err := lib.Performers(ctx, group)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n  tracks:     %s\n  performers: %s\n",
			group.String("name"), labels(ts, "title"), labels(ps, "name"))
	}

	groups, err := lib.Groups(ctx, tracks["Bohemian Rhapsody"])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Bohemian Rhapsody\n  groups:     %s\n", labels(groups, "name"))
	return nil
}

func labels(entities []*model.Entity, field string) string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.String(field)
	}
	return strings.Join(out, ", ")
}
