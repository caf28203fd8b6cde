// Package config provides configuration management for the askql CLI.
//
// Configuration is layered with koanf: built-in defaults, then askql.yaml,
// then ASKQL_ environment variables, then explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/askql/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	Target       *TargetConfig        `koanf:"target" validate:"required"`
	Schema       SchemaConfig         `koanf:"schema"`
	Oracle       OracleConfig         `koanf:"oracle"`
	Workflow     WorkflowConfig       `koanf:"workflow"`
	Format       FormatConfig         `koanf:"format"`
	Server       ServerConfig         `koanf:"server"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output" validate:"oneof=text json"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides, selected with --target.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target"`
	Schema *SchemaConfig `koanf:"schema"`
}

// SchemaConfig says where the schema description comes from.
type SchemaConfig struct {
	// File is a schema CSV. Ignored when Discover is set.
	File string `koanf:"file"`
	// Discover introspects the target instead of reading File.
	Discover bool `koanf:"discover"`
}

// OracleConfig configures the chat-completions client.
type OracleConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model" validate:"required"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=1,lte=10"`
}

// WorkflowConfig configures the query-correction loop.
type WorkflowConfig struct {
	MaxRetries        int           `koanf:"max_retries" validate:"gte=1,lte=10"`
	ExecutionTimeout  time.Duration `koanf:"execution_timeout" validate:"gte=0"`
	ValidationTimeout time.Duration `koanf:"validation_timeout" validate:"gte=0"`
	StopOnRepeatedSQL bool          `koanf:"stop_on_repeated_sql"`
}

// FormatConfig configures result rendering.
type FormatConfig struct {
	MaxRows int    `koanf:"max_rows" validate:"gte=1"`
	Style   string `koanf:"style" validate:"oneof=table markdown csv"`
}

// ServerConfig configures askql serve.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// Watch reloads the schema file when it changes.
	Watch bool `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultConfigFile  = "askql.yaml"
	DefaultDatabase    = "data/askql.duckdb"
	DefaultSchemaFile  = "database_schema.csv"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxRetries  = 3
	DefaultMaxRows     = 5
	DefaultStyle       = "table"
	DefaultAddr        = ":8080"
	DefaultOutput      = "text"
	DefaultEnvPrefix   = "ASKQL_"
	FallbackAPIKeyEnv  = "OPENAI_API_KEY"
	defaultMaxAttempts = 3
)
