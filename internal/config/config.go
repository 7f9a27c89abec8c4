package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	CompreFace CompreFaceConfig
	Database   DatabaseConfig
	PhotoPrism PhotoPrismConfig
	Defaults   DefaultsConfig
}

type CompreFaceConfig struct {
	URL    string
	APIKey string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type PhotoPrismConfig struct {
	DatabaseURL string // MariaDB DSN for direct database access (e.g., photoprism:photoprism@tcp(mariadb:3306)/photoprism)
}

// DefaultsConfig carries tunables shipped with the binary. Values come from
// the embedded defaults.yaml and are not user configuration.
type DefaultsConfig struct {
	Gateway GatewayDefaults `yaml:"gateway"`
	Scan    ScanDefaults    `yaml:"scan"`
}

type GatewayDefaults struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxImageSize  int           `yaml:"max_image_size"`
	Timeout       time.Duration `yaml:"timeout"`
}

type ScanDefaults struct {
	Threshold   int `yaml:"threshold"`
	Concurrency int `yaml:"concurrency"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		CompreFace: CompreFaceConfig{
			URL:    os.Getenv("COMPREFACE_URL"),
			APIKey: os.Getenv("COMPREFACE_API_KEY"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		PhotoPrism: PhotoPrismConfig{
			DatabaseURL: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		Defaults: defaults,
	}
}
