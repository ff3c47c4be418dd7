package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/dbascode"
	"github.com/tordrt/dbascode/internal/db"
	"github.com/tordrt/dbascode/internal/formatter"
)

var (
	previousFile string
	extract      bool
	schemaNames  []string
	outputDir    string
)

var planCmd = &cobra.Command{
	Use:   "plan <desired.yaml>",
	Short: "Print the SQL migrating to the desired state",
	Long: `Plan compares the desired state with the previous one and prints the SQL
script. The previous state is read from --previous, or from the database given
by --db-url: the state stored by the last migrate, or with --extract the
tables found in the database. Without either the script creates everything.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var reportCmd = &cobra.Command{
	Use:   "report <desired.yaml>",
	Short: "Report the changes between the previous and the desired state",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	for _, c := range []*cobra.Command{planCmd, reportCmd} {
		c.Flags().StringVarP(&previousFile, "previous", "p", "", "YAML file of the previously applied state")
		c.Flags().StringP("db-url", "d", "", "PostgreSQL connection string to read the previous state from")
		c.Flags().BoolVar(&extract, "extract", false, "Extract the previous state from the database instead of the stored state")
		c.Flags().StringSliceVarP(&schemaNames, "schemas", "s", []string{"public"}, "Schemas to extract with --extract")
		c.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	}
	reportCmd.Flags().StringP("format", "f", "text", "Output format: text, markdown or sql")
	reportCmd.Flags().StringVarP(&outputDir, "output-dir", "O", "", "Write an overview, one file per schema and the script to this directory")
}

func runPlan(cmd *cobra.Command, args []string) error {
	m, err := plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := openOutput(current.cfg.Output.File)
	if err != nil {
		return err
	}
	defer closeFn()
	return writeReport(w, "sql", m)
}

func runReport(cmd *cobra.Command, args []string) error {
	if outputDir != "" && current.cfg.Output.File != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	m, err := plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputDir != "" {
		format := current.cfg.Output.Format
		if format == "sql" {
			return fmt.Errorf("--output-dir needs the text or markdown format")
		}
		if err := formatter.NewMultiFileFormatter(outputDir, format).Format(m); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}
	w, closeFn, err := openOutput(current.cfg.Output.File)
	if err != nil {
		return err
	}
	defer closeFn()
	return writeReport(w, current.cfg.Output.Format, m)
}

func writeReport(w io.Writer, format string, m *dbascode.Migration) error {
	var err error
	switch format {
	case "sql":
		if !m.Empty() {
			_, err = fmt.Fprintln(w, m.SQL())
		}
	case "text":
		err = formatter.NewTextFormatter(w).Format(m)
	case "markdown":
		err = formatter.NewMarkdownFormatter(w).Format(m)
	default:
		return fmt.Errorf("invalid format: %s (must be 'text', 'markdown' or 'sql')", format)
	}
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

// plan loads the desired state from path and plans the migration from the
// previous state.
func plan(ctx context.Context, path string) (*dbascode.Migration, error) {
	raw, err := dbascode.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cur, err := dbascode.Load(raw, current.reg)
	if err != nil {
		return nil, fmt.Errorf("failed to load desired state: %w", err)
	}
	current.log.Info("loaded configuration", zap.String("path", path))

	prev, err := previous(ctx)
	if err != nil {
		return nil, err
	}
	m, err := dbascode.Plan(prev, cur, current.reg)
	if err != nil {
		return nil, err
	}
	current.log.Info("planned migration",
		zap.Int("creates", len(m.Buckets.Create)),
		zap.Int("alters", len(m.Buckets.Alter)),
		zap.Int("drops", len(m.Buckets.Drop)),
		zap.Int("statements", len(m.Script.Statements)))
	return m, nil
}

// previous resolves the previous state from --previous or the database
func previous(ctx context.Context) (*dbascode.Database, error) {
	if previousFile != "" {
		prev, err := dbascode.LoadFile(previousFile, current.reg)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous state: %w", err)
		}
		return prev, nil
	}
	url := current.cfg.Database.URL
	if url == "" {
		if extract {
			return nil, fmt.Errorf("--extract needs --db-url")
		}
		current.log.Debug("no previous state, planning from an empty database")
		return nil, nil
	}

	client, err := db.NewPostgresClient(ctx, url, db.WithLogger(current.log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer func() {
		if err := client.Close(ctx); err != nil {
			current.log.Warn("failed to close PostgreSQL connection", zap.Error(err))
		}
	}()
	return previousFromDB(ctx, client)
}

func previousFromDB(ctx context.Context, client *db.PostgresClient) (*dbascode.Database, error) {
	if extract {
		raw, err := db.NewExtractor(client, schemaNames...).Extract(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to extract schema: %w", err)
		}
		current.log.Info("extracted previous state", zap.Strings("schemas", schemaNames))
		prev, err := dbascode.Load(raw, current.reg)
		if err != nil {
			return nil, fmt.Errorf("failed to load extracted state: %w", err)
		}
		return prev, nil
	}
	prev, err := dbascode.AppliedState(ctx, client, current.reg)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		current.log.Info("database has no stored state, planning from an empty database")
	}
	return prev, nil
}
