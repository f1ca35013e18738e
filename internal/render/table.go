// ABOUTME: Tabular and detail views of catalog records for the admin console
// ABOUTME: Columns follow the kind's schema order, with the identifier first

package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/2389/brewdesk/internal/catalog"
)

// maxCell truncates long cells in table view.
const maxCell = 40

// Table writes recs of kind k as aligned columns. An empty collection prints
// a placeholder line.
func Table(w io.Writer, k catalog.Kind, recs []catalog.Record) error {
	schema, err := catalog.SchemaFor(k)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintf(w, "No %s found.\n", strings.ToLower(k.Plural()))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"ID"}
	for _, f := range schema.Fields {
		header = append(header, strings.ToUpper(f.Label))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, rec := range recs {
		vals := rec.Values()
		row := []string{idCell(rec)}
		for _, f := range schema.Fields {
			row = append(row, truncate(Value(f, vals[f.Name]), maxCell))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Detail writes one record as "Label: value" lines.
func Detail(w io.Writer, rec catalog.Record) error {
	schema, err := catalog.SchemaFor(rec.Kind())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", idCell(rec))
	vals := rec.Values()
	for _, f := range schema.Fields {
		fmt.Fprintf(tw, "%s:\t%s\n", f.Label, Value(f, vals[f.Name]))
	}
	return tw.Flush()
}

// Value formats a field value for display. Null prices show as "-".
func Value(f catalog.Field, v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case float64:
		if f.Coercion == catalog.CoerceFloatOrNull {
			return "RM " + strconv.FormatFloat(x, 'f', 2, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}

func idCell(rec catalog.Record) string {
	if id, ok := rec.Identifier(); ok {
		return strconv.FormatInt(id, 10)
	}
	return "new"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
