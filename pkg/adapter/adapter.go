// Package adapter provides the data store adapter contract and shared
// database/sql plumbing for askql.
//
// Concrete adapter implementations live in pkg/adapters/ subdirectories and
// register themselves in init(). Import them with a blank identifier:
//
//	import _ "github.com/leapstack-labs/askql/pkg/adapters/duckdb"
package adapter

import (
	"errors"

	"github.com/leapstack-labs/askql/pkg/core"
)

// Type aliases so callers can stay inside this package.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("database connection not established")
