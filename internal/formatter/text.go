package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/dbascode/internal/changes"
)

// TextFormatter formats a migration as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the change list followed by the SQL script
func (f *TextFormatter) Format(m *changes.Migration) error {
	if m.Empty() {
		_, _ = fmt.Fprintln(f.writer, "No changes")
		return nil
	}
	f.formatEntries(Entries(m))
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "SQL:")
	_, _ = fmt.Fprintln(f.writer, m.SQL())
	return nil
}

func (f *TextFormatter) formatEntries(entries []Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintf(f.writer, "%-10s %s (%s)\n", opLabel(e.Op), e.Path, e.Type)
		for _, c := range e.Changes {
			_, _ = fmt.Fprintf(f.writer, "  %s: %s -> %s\n", c.Name, formatValue(c.Old), formatValue(c.Cur))
		}
	}
}
