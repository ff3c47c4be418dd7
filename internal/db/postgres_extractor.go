package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/dbascode/internal/tree"
)

// Extractor reads the tables and enum types of live schemas into the
// declarative form the object model is built from. It serves as previous
// state for databases that were not set up by this tool.
type Extractor struct {
	client  *PostgresClient
	schemas []string
}

// NewExtractor creates an extractor for the given schemas
func NewExtractor(client *PostgresClient, schemas ...string) *Extractor {
	return &Extractor{client: client, schemas: schemas}
}

// Extract returns the declarative input of the extracted schemas
func (e *Extractor) Extract(ctx context.Context) (*tree.Fields, error) {
	schemas := &tree.Fields{}
	for _, s := range e.schemas {
		f, err := e.extractSchema(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("failed to extract schema %s: %w", s, err)
		}
		if f != nil {
			schemas.Set(s, f)
		}
	}
	return tree.NewFields("schemas", schemas), nil
}

func (e *Extractor) extractSchema(ctx context.Context, name string) (*tree.Fields, error) {
	var exists bool
	err := e.client.GetConnection().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, name).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	types, err := e.extractEnums(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract types: %w", err)
	}
	tableNames, err := e.tableNames(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := &tree.Fields{}
	for _, t := range tableNames {
		table, err := e.extractTable(ctx, name, t)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", t, err)
		}
		tables.Set(t, table)
	}
	return tree.NewFields("types", types, "tables", tables), nil
}

// tableNames lists the base tables of a schema
func (e *Extractor) tableNames(ctx context.Context, schema string) ([]string, error) {
	rows, err := e.client.GetConnection().Query(ctx, `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p')
		ORDER BY c.relname`, schema)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// extractTable extracts columns, primary key, foreign keys and indexes
func (e *Extractor) extractTable(ctx context.Context, schema, tableName string) (*tree.Fields, error) {
	table := &tree.Fields{}

	columns, err := e.extractColumns(ctx, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Set("columns", columns)

	pk, err := e.extractPrimaryKey(ctx, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}
	if pk != nil {
		table.Set("primaryKey", pk)
	}

	fks, err := e.extractForeignKeys(ctx, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.Set("foreignKeys", fks)

	indexes, err := e.extractIndexes(ctx, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Set("indexes", indexes)

	return table, nil
}

// sqlTypeNames maps information_schema type names to their short forms
var sqlTypeNames = map[string]string{
	"timestamp with time zone":    "timestamptz",
	"timestamp without time zone": "timestamp",
	"time with time zone":         "timetz",
	"time without time zone":      "time",
	"character varying":           "varchar",
	"character":                   "char",
}

// udtNames maps internal type names to the names used in configuration
var udtNames = map[string]string{
	"int2":   "smallint",
	"int4":   "integer",
	"int8":   "bigint",
	"float4": "real",
	"float8": "double precision",
	"bool":   "boolean",
}

func normalizePostgresType(dataType, udtName string, length *int) string {
	switch dataType {
	case "USER-DEFINED":
		return udtName
	case "ARRAY":
		// array udt names carry a leading underscore, _int4 is integer[]
		elem, ok := strings.CutPrefix(udtName, "_")
		if !ok {
			return "array"
		}
		if n, ok := udtNames[elem]; ok {
			elem = n
		}
		return elem + "[]"
	}
	name, ok := sqlTypeNames[dataType]
	if !ok {
		return dataType
	}
	if length != nil && (name == "varchar" || name == "char") {
		return fmt.Sprintf("%s(%d)", name, *length)
	}
	return name
}

// extractColumns extracts the columns of a table in ordinal order
func (e *Extractor) extractColumns(ctx context.Context, schema, tableName string) (*tree.Fields, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.udt_name,
			c.character_maximum_length,
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position)
		FROM information_schema.columns c
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := &tree.Fields{}
	for rows.Next() {
		var name, dataType, nullable, udtName string
		var defaultVal, comment *string
		var charMaxLength *int

		if err := rows.Scan(&name, &dataType, &nullable, &defaultVal, &udtName, &charMaxLength, &comment); err != nil {
			return nil, err
		}

		col := tree.NewFields(
			"type", normalizePostgresType(dataType, udtName, charMaxLength),
			"allowNull", nullable == "YES",
		)
		if defaultVal != nil {
			col.Set("default", *defaultVal)
		}
		if comment != nil {
			col.Set("comment", *comment)
		}
		columns.Set(name, col)
	}

	return columns, rows.Err()
}

// extractEnums extracts the enum types of a schema with their values
func (e *Extractor) extractEnums(ctx context.Context, schema string) (*tree.Fields, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string][]any)
	var names []string
	for rows.Next() {
		var typName, enumLabel string
		if err := rows.Scan(&typName, &enumLabel); err != nil {
			return nil, err
		}
		if _, ok := values[typName]; !ok {
			names = append(names, typName)
		}
		values[typName] = append(values[typName], enumLabel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	types := &tree.Fields{}
	for _, n := range names {
		types.Set(n, tree.NewFields("values", values[n]))
	}
	return types, nil
}

// extractPrimaryKey extracts the primary key constraint, nil if there is none
func (e *Extractor) extractPrimaryKey(ctx context.Context, schema, tableName string) (*tree.Fields, error) {
	query := `
		SELECT kcu.constraint_name, kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE kcu.table_schema = $1
			AND kcu.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var name string
	var columns []any
	for rows.Next() {
		var colName string
		if err := rows.Scan(&name, &colName); err != nil {
			return nil, err
		}
		columns = append(columns, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}

	pk := tree.NewFields("columns", columns)
	if name != tableName+"_pkey" {
		pk.Set("name", name)
	}
	return pk, nil
}

// extractForeignKeys extracts foreign key constraints keyed by name
func (e *Extractor) extractForeignKeys(ctx context.Context, schema, tableName string) (*tree.Fields, error) {
	query := `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_schema AS foreign_table_schema,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fks := &tree.Fields{}
	for rows.Next() {
		var name, column, refSchema, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &column, &refSchema, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		fk, ok := fks.Values[name].(*tree.Fields)
		if !ok {
			fk = tree.NewFields(
				"columns", []any{},
				"references", refSchema+"."+refTable,
				"refColumns", []any{},
				"onDelete", referentialAction(onDelete),
				"onUpdate", referentialAction(onUpdate),
			)
			fks.Set(name, fk)
		}
		fk.Set("columns", append(fk.Values["columns"].([]any), column))
		fk.Set("refColumns", append(fk.Values["refColumns"].([]any), refColumn))
	}

	return fks, rows.Err()
}

// referentialAction maps the default action to the unset declaration
func referentialAction(rule string) string {
	if rule == "NO ACTION" {
		return ""
	}
	return rule
}

// extractIndexes extracts the indexes that do not back the primary key
func (e *Extractor) extractIndexes(ctx context.Context, schema, tableName string) (*tree.Fields, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname AS method,
			coalesce(pg_get_expr(ix.indpred, ix.indrelid), '') AS predicate,
			array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique, am.amname, ix.indpred, ix.indrelid
		ORDER BY i.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexes := &tree.Fields{}
	for rows.Next() {
		var name, method, predicate string
		var unique bool
		var columns []string
		if err := rows.Scan(&name, &unique, &method, &predicate, &columns); err != nil {
			return nil, err
		}
		cols := make([]any, len(columns))
		for i, c := range columns {
			cols[i] = c
		}
		indexes.Set(name, tree.NewFields(
			"columns", cols,
			"unique", unique,
			"method", method,
			"where", predicate,
		))
	}

	return indexes, rows.Err()
}
