package config

import "time"

// DefaultMermaidScript is the Mermaid bundle loaded into the render page.
const DefaultMermaidScript = "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js"

// DefaultExcludes are glob patterns skipped by the importer by default.
var DefaultExcludes = []string{
	"vendor/**",
	"node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".diagramstudio",
		Storage: StorageConfig{
			Backend:     StorageSQLite,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "diagramstudio:",
		},
		Theme: ThemeConfig{Default: "system"},
		Autosave: AutosaveConfig{
			Enabled: true,
			Delay:   3 * time.Second,
		},
		Render: RenderConfig{
			Headless:      true,
			MermaidScript: DefaultMermaidScript,
			Timeout:       30 * time.Second,
		},
		Export: ExportConfig{
			Format:      "svg",
			Transparent: true,
			Scale:       1,
		},
		Server: ServerConfig{Port: 8080},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Include: []string{"**/*.md", "**/*.mmd", "**/*.mermaid"},
		Exclude: DefaultExcludes,
	}
}
