package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// starterFile is the askql.yaml written by askql init. Field order is the
// order keys appear in the file.
type starterFile struct {
	Target   starterTarget   `yaml:"target"`
	Schema   starterSchema   `yaml:"schema"`
	Oracle   starterOracle   `yaml:"oracle"`
	Workflow starterWorkflow `yaml:"workflow"`
	Format   starterFormat   `yaml:"format"`
	Server   starterServer   `yaml:"server"`
}

type starterTarget struct {
	Type     string `yaml:"type"`
	Database string `yaml:"database,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type starterSchema struct {
	File     string `yaml:"file"`
	Discover bool   `yaml:"discover"`
}

type starterOracle struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type starterWorkflow struct {
	MaxRetries        int  `yaml:"max_retries"`
	StopOnRepeatedSQL bool `yaml:"stop_on_repeated_sql"`
}

type starterFormat struct {
	MaxRows int    `yaml:"max_rows"`
	Style   string `yaml:"style"`
}

type starterServer struct {
	Addr string `yaml:"addr"`
}

// starterTargets are the target blocks for each supported store type.
var starterTargets = map[string]starterTarget{
	"duckdb": {Type: "duckdb", Database: DefaultDatabase},
	"sqlite": {Type: "sqlite", Database: "data/askql.sqlite"},
	"postgres": {
		Type:     "postgres",
		Host:     "localhost",
		Port:     5432,
		Database: "askql",
		User:     "${PGUSER}",
		Password: "${PGPASSWORD}",
	},
}

// WriteStarter writes a starter askql.yaml for the given target type.
// Secrets are written as ${VAR} references.
func WriteStarter(w io.Writer, targetType string) error {
	target, ok := starterTargets[targetType]
	if !ok {
		return fmt.Errorf("no starter config for target type %q (use duckdb, sqlite or postgres)", targetType)
	}
	f := starterFile{
		Target: target,
		Schema: starterSchema{File: DefaultSchemaFile, Discover: targetType == "postgres"},
		Oracle: starterOracle{
			BaseURL: DefaultBaseURL,
			APIKey:  "${" + FallbackAPIKeyEnv + "}",
			Model:   DefaultModel,
		},
		Workflow: starterWorkflow{MaxRetries: DefaultMaxRetries},
		Format:   starterFormat{MaxRows: DefaultMaxRows, Style: DefaultStyle},
		Server:   starterServer{Addr: DefaultAddr},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
