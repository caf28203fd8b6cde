package core

// TargetConfig describes the data store a workflow queries.
type TargetConfig struct {
	Type     string            `koanf:"type" validate:"required"`
	Database string            `koanf:"database"`
	Schema   string            `koanf:"schema"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port" validate:"gte=0,lte=65535"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// AdapterConfig converts the target into the adapter connection config.
func (t *TargetConfig) AdapterConfig() AdapterConfig {
	return AdapterConfig{
		Type:     t.Type,
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}
