package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// StateSchema holds the bookkeeping table of the stored configuration
const StateSchema = "dbascode"

// PostgresClient manages the connection to the target PostgreSQL database
type PostgresClient struct {
	conn *pgx.Conn
	log  *zap.Logger
}

// Option configures a PostgresClient
type Option func(*PostgresClient)

// WithLogger logs executed statements to l at debug level
func WithLogger(l *zap.Logger) Option {
	return func(c *PostgresClient) { c.log = l }
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string, opts ...Option) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &PostgresClient{conn: conn, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// Apply runs the statements in one transaction. When state is not nil it is
// stored as the applied configuration in the same transaction, so the stored
// state never disagrees with the schema.
func (c *PostgresClient) Apply(ctx context.Context, statements []string, state []byte) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range statements {
		c.log.Debug("executing statement", zap.Int("n", i+1), zap.String("sql", stmt))
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w\n%s", i+1, err, stmt)
		}
	}
	if state != nil {
		if err := saveState(ctx, tx, state); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	c.log.Debug("committed", zap.Int("statements", len(statements)), zap.Bool("state", state != nil))
	return nil
}

// LoadState returns the configuration stored by the last Apply, or nil if
// nothing was applied yet.
func (c *PostgresClient) LoadState(ctx context.Context) ([]byte, error) {
	var exists bool
	err := c.conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, StateSchema+".state").Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up state table: %w", err)
	}
	if !exists {
		return nil, nil
	}
	var data []byte
	err = c.conn.QueryRow(ctx, `SELECT config FROM `+pgx.Identifier{StateSchema, "state"}.Sanitize()+` WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return data, nil
}

func saveState(ctx context.Context, tx pgx.Tx, state []byte) error {
	table := pgx.Identifier{StateSchema, "state"}.Sanitize()
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{StateSchema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id integer PRIMARY KEY,
			config bytea NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to prepare state table: %w", err)
		}
	}
	_, err := tx.Exec(ctx, `INSERT INTO `+table+` (id, config, applied_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, applied_at = EXCLUDED.applied_at`, state)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
