package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"goea/adapters/stats/correction"
	"goea/adapters/stats/fisher"
	"goea/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Ontology    OntologyConfig    `yaml:"ontology"`
	Association AssociationConfig `yaml:"association"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
	LogLevel    string            `yaml:"log_level"`
}

// OntologyConfig locates the OBO source and the relationships to retain.
type OntologyConfig struct {
	Path          string   `yaml:"path"`
	Relationships []string `yaml:"relationships"`
}

// AssociationConfig locates the item→term mapping.
type AssociationConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
}

// EnrichmentConfig holds the statistical settings of a run.
type EnrichmentConfig struct {
	Methods    []string `yaml:"methods"`
	PValCalc   string   `yaml:"pvalcalc"`
	CrossCheck bool     `yaml:"cross_check"`
	Tolerance  float64  `yaml:"tolerance"`
	Alpha      float64  `yaml:"alpha"`
	Workers    int      `yaml:"workers"`
	Propagate  bool     `yaml:"propagate"`
	Namespaces []string `yaml:"namespaces"`
}

// StoreConfig selects the run archive.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Ontology: OntologyConfig{
			Path: "go-basic.obo",
		},
		Association: AssociationConfig{
			Delimiter: ";",
		},
		Enrichment: EnrichmentConfig{
			Methods:   []string{"bonferroni", "fdr_bh"},
			PValCalc:  fisher.Exact,
			Tolerance: fisher.DefaultTolerance,
			Alpha:     0.05,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "goea.db",
		},
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
		LogLevel: "INFO",
	}
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse config file %s: %w", path, err))
	}
	return config, nil
}

// Load builds the configuration from defaults, the YAML file named by
// GOEA_CONFIG when set, and environment overrides, then validates it.
func Load() (*Config, error) {
	config := DefaultConfig()
	if path := os.Getenv("GOEA_CONFIG"); path != "" {
		fromFile, err := LoadFromFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
		config = fromFile
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Ontology.Path = getEnvOrDefault("GOEA_OBO", c.Ontology.Path)
	c.Ontology.Relationships = getEnvListOrDefault("GOEA_RELATIONSHIPS", c.Ontology.Relationships)

	c.Association.Path = getEnvOrDefault("GOEA_ASSOCIATIONS", c.Association.Path)
	c.Association.Delimiter = getEnvOrDefault("GOEA_ASSOCIATION_DELIMITER", c.Association.Delimiter)

	c.Enrichment.Methods = getEnvListOrDefault("GOEA_METHODS", c.Enrichment.Methods)
	c.Enrichment.PValCalc = getEnvOrDefault("GOEA_PVALCALC", c.Enrichment.PValCalc)
	c.Enrichment.CrossCheck = getEnvBoolOrDefault("GOEA_CROSS_CHECK", c.Enrichment.CrossCheck)
	c.Enrichment.Tolerance = getEnvFloatOrDefault("GOEA_TOLERANCE", c.Enrichment.Tolerance)
	c.Enrichment.Alpha = getEnvFloatOrDefault("GOEA_ALPHA", c.Enrichment.Alpha)
	c.Enrichment.Workers = getEnvIntOrDefault("GOEA_WORKERS", c.Enrichment.Workers)
	c.Enrichment.Propagate = getEnvBoolOrDefault("GOEA_PROPAGATE", c.Enrichment.Propagate)
	c.Enrichment.Namespaces = getEnvListOrDefault("GOEA_NAMESPACES", c.Enrichment.Namespaces)

	c.Store.Driver = getEnvOrDefault("GOEA_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnvOrDefault("DATABASE_URL", c.Store.DSN)

	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.GinMode = getEnvOrDefault("GIN_MODE", c.Server.GinMode)

	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Ontology.Path == "" {
		return errors.ConfigInvalid("ontology path is required")
	}
	if len(c.Enrichment.Methods) == 0 {
		return errors.ConfigInvalid("at least one correction method is required")
	}
	for _, m := range c.Enrichment.Methods {
		if _, err := correction.Lookup(m); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
	}
	if _, err := fisher.New(c.Enrichment.PValCalc); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if c.Enrichment.Alpha <= 0 || c.Enrichment.Alpha >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("alpha must be in (0, 1), got %g", c.Enrichment.Alpha))
	}
	if c.Enrichment.Tolerance < 0 {
		return errors.ConfigInvalid("tolerance must not be negative")
	}
	if c.Enrichment.Workers < 0 {
		return errors.ConfigInvalid("workers must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported store driver %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		return errors.ConfigInvalid("store DSN is required")
	}
	if c.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unsupported gin mode %q", c.Server.GinMode))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
