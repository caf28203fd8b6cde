// Package core defines the shared language of askql.
//
// This package contains:
//   - Data store contract (Adapter) and its configuration
//   - Table metadata types used for schema discovery
//   - Target configuration shared by the CLI and the HTTP API
//
// pkg/core imports only the standard library. All other packages depend on
// core, not the reverse.
package core
