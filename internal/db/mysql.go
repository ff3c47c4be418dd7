package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

const mysqlHistorySchema = `
	CREATE TABLE IF NOT EXISTS migrations (
		id CHAR(36) PRIMARY KEY,
		applied_at VARCHAR(40) NOT NULL,
		checksum CHAR(64) NOT NULL,
		statements INT NOT NULL,
		creates INT NOT NULL,
		alters INT NOT NULL,
		drops INT NOT NULL,
		script LONGTEXT NOT NULL
	)
`

// openMySQL opens a MySQL database from a go-sql-driver DSN
func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
