package config

import "time"

// StorageBackend selects where diagrams and preferences are persisted.
type StorageBackend string

const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// Config is the top-level diagramstudio configuration, corresponding to .diagramstudio.yml.
type Config struct {
	DataDir  string         `yaml:"data_dir" koanf:"data_dir" validate:"required"`
	Storage  StorageConfig  `yaml:"storage" koanf:"storage"`
	Theme    ThemeConfig    `yaml:"theme" koanf:"theme"`
	Autosave AutosaveConfig `yaml:"autosave" koanf:"autosave"`
	Render   RenderConfig   `yaml:"render" koanf:"render"`
	Export   ExportConfig   `yaml:"export" koanf:"export"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Include  []string       `yaml:"include" koanf:"include"`
	Exclude  []string       `yaml:"exclude" koanf:"exclude"`
}

// StorageConfig holds key-value backend settings.
type StorageConfig struct {
	Backend     StorageBackend `yaml:"backend" koanf:"backend" validate:"oneof=sqlite redis memory"`
	RedisAddr   string         `yaml:"redis_addr" koanf:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int            `yaml:"redis_db" koanf:"redis_db" validate:"gte=0"`
	RedisPrefix string         `yaml:"redis_prefix" koanf:"redis_prefix"`
}

// ThemeConfig controls the initial theme when no preference is stored.
type ThemeConfig struct {
	Default string `yaml:"default" koanf:"default" validate:"oneof=system light dark"`
}

// AutosaveConfig controls the editor's debounced auto-save.
type AutosaveConfig struct {
	Enabled bool          `yaml:"enabled" koanf:"enabled"`
	Delay   time.Duration `yaml:"delay" koanf:"delay" validate:"gte=0"`
}

// RenderConfig configures the headless browser used to run Mermaid.
type RenderConfig struct {
	ChromeBin     string        `yaml:"chrome_bin" koanf:"chrome_bin"`
	ControlURL    string        `yaml:"control_url" koanf:"control_url"`
	Headless      bool          `yaml:"headless" koanf:"headless"`
	MermaidScript string        `yaml:"mermaid_script" koanf:"mermaid_script" validate:"required"`
	Timeout       time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
}

// ExportConfig holds the default export options.
type ExportConfig struct {
	Format      string  `yaml:"format" koanf:"format" validate:"oneof=svg png"`
	Transparent bool    `yaml:"transparent" koanf:"transparent"`
	Scale       float64 `yaml:"scale" koanf:"scale" validate:"gte=0.5,lte=3"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port" validate:"gt=0,lte=65535"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" koanf:"format" validate:"oneof=console json"`
}
