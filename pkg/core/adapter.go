package core

import (
	"context"
	"database/sql"
	"errors"
)

// Adapter defines the interface that all data store adapters must implement.
//
// The query-correction workflow needs two things from a store: a
// non-mutating plan check (Explain) and a synchronous query (Query).
// The remaining methods cover connection management and schema discovery.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	// Driver errors are returned as-is.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Explain asks the engine to plan the statement without running it.
	// Driver errors are returned as-is.
	Explain(ctx context.Context, sql string) error

	// ListTables returns the user tables in the default schema, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// GetTableMetadata retrieves metadata for a table.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)

	// DialectName returns the SQL dialect spoken by the adapter.
	DialectName() string
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column represents a column in a database table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// TableMetadata holds metadata about a database table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
	release func() error
}

// NewRows wraps rows. release, if not nil, runs once after the rows close.
func NewRows(rows *sql.Rows, release func() error) *Rows {
	return &Rows{Rows: rows, release: release}
}

// Close closes the rows and then runs the release hook.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	if r.release != nil {
		err = errors.Join(err, r.release())
		r.release = nil
	}
	return err
}
