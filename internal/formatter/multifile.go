package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tordrt/dbascode/internal/changes"
)

// ScriptFile is the name of the file holding the complete script
const ScriptFile = "migration.sql"

// globalFile holds the changes of objects outside schemas
const globalFile = "_global"

// MultiFileFormatter writes a migration report to a directory: an overview,
// one file per affected schema and the script.
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the migration to multiple files
func (f *MultiFileFormatter) Format(m *changes.Migration) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	groups := make(map[string][]Entry)
	for _, e := range Entries(m) {
		groups[e.Schema()] = append(groups[e.Schema()], e)
	}
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	if err := f.writeOverview(names, groups); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, n := range names {
		if err := f.writeGroupFile(n, groups[n]); err != nil {
			return fmt.Errorf("failed to write changes of schema %s: %w", n, err)
		}
	}

	script := m.SQL()
	if script != "" {
		script += "\n"
	}
	if err := os.WriteFile(filepath.Join(f.OutputDir, ScriptFile), []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

func fileName(schema string) string {
	if schema == "" {
		return globalFile
	}
	return schema
}

// writeOverview writes the overview file with the number of changes per
// schema
func (f *MultiFileFormatter) writeOverview(names []string, groups map[string][]Entry) error {
	ext := f.getFileExtension()
	file, err := os.Create(filepath.Join(f.OutputDir, "_overview"+ext))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# Migration Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each schema has a corresponding file: `<schema>%s`, the script is in `%s`\n\n", ext, ScriptFile)
	} else {
		_, _ = fmt.Fprintf(file, "MIGRATION OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each schema has a file: <schema>%s, script: %s\n\n", ext, ScriptFile)
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintln(file, "No changes")
		return nil
	}

	for _, n := range names {
		counts := make(map[changes.Op]int)
		for _, e := range groups[n] {
			counts[e.Op]++
		}
		line := fmt.Sprintf("%s: %d created, %d altered, %d dropped, %d comments, %d permissions",
			fileName(n), counts[changes.OpCreate], counts[changes.OpAlter], counts[changes.OpDrop],
			counts[changes.OpComment], counts[changes.OpPermission])
		if f.OutputFormat == formatMarkdown {
			line = "- " + line
		}
		_, _ = fmt.Fprintln(file, line)
	}
	return nil
}

// writeGroupFile writes the entries of one schema to its own file
func (f *MultiFileFormatter) writeGroupFile(schema string, entries []Entry) error {
	file, err := os.Create(filepath.Join(f.OutputDir, fileName(schema)+f.getFileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "## %s\n\n", fileName(schema))
		NewMarkdownFormatter(file).FormatEntries(entries)
		return nil
	}
	NewTextFormatter(file).formatEntries(entries)
	return nil
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
