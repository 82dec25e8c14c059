package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SJBM1876/Musicians-and-Bands-Database/model"
	"github.com/SJBM1876/Musicians-and-Bands-Database/schema"
)

// entityView is the JSON shape of an entity.
type entityView struct {
	Kind      string         `json:"kind"`
	ID        int64          `json:"id"`
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func viewOf(e *model.Entity) entityView {
	return entityView{Kind: e.Kind, ID: e.ID, Values: e.Values, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printEntities writes entities of kind k as a table or as JSON.
func (a *app) printEntities(w io.Writer, k *schema.Kind, entities []*model.Entity) error {
	if a.jsonOutput {
		views := make([]entityView, len(entities))
		for i, e := range entities {
			views[i] = viewOf(e)
		}
		return a.printJSON(w, views)
	}

	cols := []string{"id"}
	for _, f := range k.Fields {
		cols = append(cols, f.Name)
	}
	for _, fk := range k.ForeignKeys {
		cols = append(cols, fk.Column)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, e := range entities {
		cells := []string{fmt.Sprint(e.ID)}
		for _, c := range cols[1:] {
			cells = append(cells, cell(e.Get(c)))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
