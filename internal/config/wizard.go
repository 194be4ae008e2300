package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .diagramstudio.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to diagramstudio! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Storage backend.
	backendPrompt := promptui.Select{
		Label: "Where should diagrams be stored",
		Items: []string{
			"sqlite: a local database file in the data directory",
			"redis: a shared Redis server",
			"memory: nothing survives a restart",
		},
	}
	backendIdx, _, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("storage selection: %w", err)
	}
	backends := []StorageBackend{StorageSQLite, StorageRedis, StorageMemory}
	cfg.Storage.Backend = backends[backendIdx]

	if cfg.Storage.Backend == StorageRedis {
		addrPrompt := promptui.Prompt{
			Label:   "Redis address",
			Default: cfg.Storage.RedisAddr,
		}
		addr, err := addrPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("redis address: %w", err)
		}
		cfg.Storage.RedisAddr = addr
	}

	// 2. Data directory.
	dirPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	dataDir, err := dirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 3. Theme.
	themePrompt := promptui.Select{
		Label: "Default theme",
		Items: []string{"system", "light", "dark"},
	}
	_, theme, err := themePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("theme selection: %w", err)
	}
	cfg.Theme.Default = theme

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 5. Import patterns.
	includePrompt := promptui.Prompt{
		Label:   "Import patterns (comma-separated globs)",
		Default: strings.Join(cfg.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if inc := splitAndTrim(includeStr); len(inc) > 0 {
		cfg.Include = inc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(FileName); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", FileName)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
