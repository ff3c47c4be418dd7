package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/dbascode/internal/changes"
)

// MarkdownFormatter formats a migration as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the migration in markdown format
func (f *MarkdownFormatter) Format(m *changes.Migration) error {
	_, _ = fmt.Fprintln(f.writer, "# Migration Plan")
	_, _ = fmt.Fprintln(f.writer)

	if m.Empty() {
		_, _ = fmt.Fprintln(f.writer, "No changes.")
		return nil
	}

	_, _ = fmt.Fprintln(f.writer, "## Changes")
	_, _ = fmt.Fprintln(f.writer)
	f.FormatEntries(Entries(m))

	_, _ = fmt.Fprintln(f.writer, "## SQL")
	_, _ = fmt.Fprintln(f.writer)
	f.formatScript(m.Script)
	return nil
}

// FormatEntries writes the entries as a table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatEntries(entries []Entry) {
	_, _ = fmt.Fprintln(f.writer, "| Operation | Object | Type | Changes |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|---|")
	for _, e := range entries {
		var parts []string
		for _, c := range e.Changes {
			parts = append(parts, fmt.Sprintf("%s: %s → %s", c.Name, escape(formatValue(c.Old)), escape(formatValue(c.Cur))))
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | `%s` | %s | %s |\n", opLabel(e.Op), e.Path, e.Type, strings.Join(parts, "<br>"))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatScript(s *changes.Script) {
	_, _ = fmt.Fprintln(f.writer, "```sql")
	_, _ = fmt.Fprintln(f.writer, s.String())
	_, _ = fmt.Fprintln(f.writer, "```")
}

// escape keeps values from breaking the table layout
func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
