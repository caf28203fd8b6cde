package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/askql/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, Query and Explain implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// SingleStatement makes Query and Explain prepare the text with the
	// driver first, on the connection that then runs it. Set it for drivers
	// that run every statement of a multi-statement string but refuse to
	// prepare one.
	SingleStatement bool
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
// The driver error is returned unwrapped.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if b.SingleStatement {
		conn, err := b.singleStatementConn(ctx, sqlStr)
		if err != nil {
			return nil, err
		}
		//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
		rows, err := conn.QueryContext(ctx, sqlStr)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return core.NewRows(rows, conn.Close), nil
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	return core.NewRows(rows, nil), nil
}

// Explain plans the statement with EXPLAIN and discards the plan.
// The driver error is returned unwrapped.
func (b *BaseSQLAdapter) Explain(ctx context.Context, sqlStr string) error {
	return b.ExplainWith(ctx, "EXPLAIN", sqlStr)
}

// ExplainWith runs prefix + statement and drains the result.
func (b *BaseSQLAdapter) ExplainWith(ctx context.Context, prefix, sqlStr string) error {
	rows, err := b.Query(ctx, prefix+" "+sqlStr)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
	}
	return rows.Err()
}

// singleStatementConn returns a pooled connection on which the driver has
// prepared query as exactly one statement. Nothing is executed.
// The caller closes the connection.
func (b *BaseSQLAdapter) singleStatementConn(ctx context.Context, query string) (*sql.Conn, error) {
	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, err
	}
	err = conn.Raw(func(dc any) error {
		dconn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("driver connection %T cannot prepare statements", dc)
		}
		stmt, err := dconn.Prepare(query)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses defaultSchema if not specified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// ListTablesCommon returns table names from information_schema.tables.
// placeholder formats the 1-based bind parameter for the dialect.
func (b *BaseSQLAdapter) ListTablesCommon(ctx context.Context, schema string, placeholder func(int) string) ([]string, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	//nolint:gosec // Placeholders come from the adapter, not user input
	query := fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, placeholder(1))

	return b.scanNames(ctx, query, schema)
}

func (b *BaseSQLAdapter) scanNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}

// GetTableMetadataCommon provides a shared implementation of GetTableMetadata.
// Uses information_schema.columns with dialect-appropriate placeholders.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table, defaultSchema string, placeholder func(int) string) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := ParseQualifiedName(table, defaultSchema)

	//nolint:gosec // Placeholders come from the adapter, not user input
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, placeholder(1), placeholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	return &core.TableMetadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: b.countRows(ctx, schema+"."+tableName),
	}, nil
}

// countRows is best effort; failures report zero.
func (b *BaseSQLAdapter) countRows(ctx context.Context, qualified string) int64 {
	var n int64
	//nolint:gosec // Table names come from catalog metadata
	if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualified).Scan(&n); err != nil {
		return 0
	}
	return n
}

// QuestionPlaceholder formats bind parameters as ?.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder formats bind parameters as $N.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
