// Where: internal/config/global.go
// What: Global config load/save helpers.
// Why: Manage ~/.cxctl/config.yaml consistently.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type GlobalConfig struct {
	Version     int               `yaml:"version"`
	Log         LogConfig         `yaml:"log,omitempty"`
	ObjectStore ObjectStoreConfig `yaml:"object_store,omitempty"`
	Partition   string            `yaml:"partition,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`
}

// GlobalConfigPath honors CXCTL_CONFIG before falling back to the home directory.
func GlobalConfigPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cxctl", "config.yaml"), nil
}

func LoadGlobalConfig(path string) (GlobalConfig, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return GlobalConfig{}, err
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

// LoadOptionalGlobalConfig returns the zero config when path does not exist.
func LoadOptionalGlobalConfig(path string) (GlobalConfig, error) {
	cfg, err := LoadGlobalConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return GlobalConfig{}, nil
	}
	return cfg, err
}

func SaveGlobalConfig(path string, cfg GlobalConfig) error {
	payload, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, payload, 0o644)
}

// Resolve returns the first non-empty value, falling back to def.
func Resolve(def string, values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return def
}
