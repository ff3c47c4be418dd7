// Package dbascode plans and applies PostgreSQL schema migrations from a
// declarative YAML description of the desired database.
//
// The desired state is loaded into a typed tree of database objects. Planning
// compares it with the previously applied state and renders an ordered SQL
// script: objects are created after the objects they depend on and dropped
// before them.
//
// # Quick Start
//
//	reg, err := dbascode.NewRegistry("rls", "defaultrows")
//	if err != nil {
//		log.Fatal(err)
//	}
//	m, err := dbascode.PlanFiles("applied.yaml", "schema.yaml", reg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(m.SQL())
//
// # Input Files
//
// A file may pull in other files with the $include key. Included mappings
// are merged before the keys of the including mapping, so local keys win.
//
//	$include: [roles.yaml, tables/*.yaml]
//	schemas:
//	  public:
//	    tables:
//	      users:
//	        columns:
//	          id: {type: integer, allowNull: false}
//	        primaryKey: {columns: [id]}
package dbascode

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/db"
	"github.com/tordrt/dbascode/internal/loader"
	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/plugin/defaultrows"
	"github.com/tordrt/dbascode/internal/plugin/rls"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

// Migration is a planned migration
type Migration = changes.Migration

// Database is a loaded database description
type Database = schema.Database

// ErrInconsistent is returned when planning finds changes but renders no SQL
// or the other way round.
var ErrInconsistent = changes.ErrInconsistent

var builtin = map[string]func() plugin.Plugin{
	rls.Name:         func() plugin.Plugin { return rls.New() },
	defaultrows.Name: func() plugin.Plugin { return defaultrows.New() },
}

// Plugins returns the names of the built-in plugins, sorted
func Plugins() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistry returns a registry with the named built-in plugins registered
// in the given order.
func NewRegistry(names ...string) (*plugin.Registry, error) {
	plugins := make([]plugin.Plugin, 0, len(names))
	for _, n := range names {
		mk, ok := builtin[n]
		if !ok {
			return nil, fmt.Errorf("unknown plugin: %s (available: %v)", n, Plugins())
		}
		plugins = append(plugins, mk())
	}
	return plugin.New(plugins...)
}

// Load builds a database description from decoded input, e.g. the result of
// loader.Parse.
func Load(raw any, reg *plugin.Registry) (*Database, error) {
	return schema.NewCatalog(reg).Load(raw)
}

// LoadFile reads a YAML description and its includes
func LoadFile(path string, reg *plugin.Registry) (*Database, error) {
	raw, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Load(raw, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// LoadBytes builds a database description from YAML data. Includes are
// resolved relative to dir.
func LoadBytes(data []byte, dir string, reg *plugin.Registry) (*Database, error) {
	raw, err := loader.Parse(data, dir)
	if err != nil {
		return nil, err
	}
	return Load(raw, reg)
}

// Plan computes the migration from prev to cur. A nil prev plans the creation
// of cur, a nil cur the removal of prev.
func Plan(prev, cur *Database, reg *plugin.Registry) (*Migration, error) {
	return changes.Plan(node(prev), node(cur), &changes.Options{OnCompared: reg.Compared()})
}

// node keeps a nil database from turning into a non-nil interface
func node(d *Database) tree.Node {
	if d == nil {
		return nil
	}
	return d
}

// PlanFiles loads both files and plans the migration between them. An empty
// prevPath plans from an empty database.
func PlanFiles(prevPath, curPath string, reg *plugin.Registry) (*Migration, error) {
	var prev *Database
	if prevPath != "" {
		var err error
		if prev, err = LoadFile(prevPath, reg); err != nil {
			return nil, fmt.Errorf("failed to load previous state: %w", err)
		}
	}
	cur, err := LoadFile(curPath, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to load desired state: %w", err)
	}
	return Plan(prev, cur, reg)
}

// ReadFile reads a YAML description and its includes without building it.
// The result can be passed to Load and State.
func ReadFile(path string) (any, error) {
	return loader.LoadFile(path)
}

// State encodes decoded input, includes resolved, for storage by Apply. The
// stored state loads back into the same description.
func State(raw any) ([]byte, error) {
	return loader.Marshal(raw)
}

// Statements returns the SQL statements of m
func Statements(m *Migration) []string {
	res := make([]string, len(m.Script.Statements))
	for i, s := range m.Script.Statements {
		res[i] = s.SQL
	}
	return res
}

// Apply executes m in one transaction and stores state as the applied
// configuration.
func Apply(ctx context.Context, client *db.PostgresClient, m *Migration, state []byte) error {
	return client.Apply(ctx, Statements(m), state)
}

// AppliedState loads the description stored by the last Apply, or nil when
// the database was never migrated.
func AppliedState(ctx context.Context, client *db.PostgresClient, reg *plugin.Registry) (*Database, error) {
	data, err := client.LoadState(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	d, err := LoadBytes(data, "", reg)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored state: %w", err)
	}
	return d, nil
}
