package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
)

// Report bundles the artifacts rendered for one sheet.
type Report struct {
	Title    string
	Profile  *insights.TableProfile
	Insights []insights.Insight
}

// Render writes the report in the requested format: "markdown" ("md") or
// plain text.
func Render(w io.Writer, r Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "md", "markdown":
		return renderMarkdown(w, r)
	default:
		return renderText(w, r)
	}
}

// RenderString renders the report into a string.
func RenderString(r Report, format string) (string, error) {
	var b strings.Builder
	if err := Render(&b, r, format); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderText(w io.Writer, r Report) error {
	p := r.Profile
	_, _ = fmt.Fprintf(w, "%s\n\n", r.Title)
	_, _ = fmt.Fprintf(w, "rows=%d cols=%d numeric=%d fill=%s%%\n\n",
		p.Rows, p.Cols, p.NumericCols, fmtFloat(p.FillRate))

	if len(p.Columns) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Column", "Kind", "Non-null", "Null rate", "Variance", "Max"})
		for _, c := range p.Columns {
			t.AppendRow(table.Row{c.Name, string(c.Kind), c.NonNull, fmtFloat(c.NullRate), fmtOpt(c.Variance), fmtOpt(c.Max)})
		}
		t.Render()
	}

	_, _ = fmt.Fprintln(w)
	for _, in := range r.Insights {
		_, _ = fmt.Fprintf(w, "- [%s] %s\n", in.Kind, in.Message)
	}
	return nil
}

func renderMarkdown(w io.Writer, r Report) error {
	p := r.Profile
	_, _ = fmt.Fprintf(w, "# %s\n\n", r.Title)
	_, _ = fmt.Fprintf(w, "rows=%d cols=%d numeric=%d fill=%s%%\n\n",
		p.Rows, p.Cols, p.NumericCols, fmtFloat(p.FillRate))

	if len(p.Columns) > 0 {
		cols := []string{"Column", "Kind", "Non-null", "Null rate", "Variance", "Max"}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
		seps := make([]string, len(cols))
		for i := range seps {
			seps[i] = "---"
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
		for _, c := range p.Columns {
			_, _ = fmt.Fprintf(w, "| %s | %s | %d | %s | %s | %s |\n",
				c.Name, string(c.Kind), c.NonNull, fmtFloat(c.NullRate), fmtOpt(c.Variance), fmtOpt(c.Max))
		}
		_, _ = fmt.Fprintln(w)
	}

	for _, in := range r.Insights {
		_, _ = fmt.Fprintf(w, "- **%s**: %s\n", in.Kind, in.Message)
	}
	return nil
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fmtOpt(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmtFloat(*f)
}
