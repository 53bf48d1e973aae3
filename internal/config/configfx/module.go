package configfx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/keinsell/zkk/internal/constants"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	DBPath        string  `yaml:"db_path"`
	EmbedURL      string  `yaml:"embed_url"`
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	FallbackModel string  `yaml:"fallback_model"`
	APIKey        string  `yaml:"api_key"`
	Dimension     int     `yaml:"dimension"`
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	Workers       int     `yaml:"workers"`
	TopK          int     `yaml:"top_k"`
	Threshold     float64 `yaml:"threshold"`
	CacheSize     int     `yaml:"cache_size"`
	LogLevel      string  `yaml:"log_level"`
	Project       string  `yaml:"project"` // Optional project path for pre-indexing
}

// Params represents the parameters needed to create configuration
type Params struct {
	fx.In

	DBPath     string `name:"dbPath"     optional:"true"`
	EmbedURL   string `name:"embedURL"   optional:"true"`
	Project    string `name:"project"    optional:"true"`
	Provider   string `name:"provider"   optional:"true"`
	LogLevel   string `name:"logLevel"   optional:"true"`
	ConfigFile string `name:"configFile" optional:"true"`
}

// Defaults returns a Config with every default filled in.
func Defaults() *Config {
	return &Config{
		DBPath:    constants.DefaultDBName,
		EmbedURL:  constants.DefaultEmbedURL,
		Provider:  constants.DefaultProvider,
		Model:     constants.DefaultModel,
		Workers:   constants.DefaultWorkers,
		TopK:      constants.DefaultTopK,
		Threshold: constants.DefaultThreshold,
		CacheSize: constants.DefaultCacheSize,
		LogLevel:  constants.DefaultLogLevel,
	}
}

// NewConfig layers defaults, the optional YAML file, ZKK_* environment
// variables and finally the explicit values.
func NewConfig(params Params) (*Config, error) {
	config := Defaults()
	if params.ConfigFile != "" {
		if err := config.loadYAML(params.ConfigFile); err != nil {
			return nil, err
		}
	}
	config.applyEnvOverrides()

	if params.DBPath != "" {
		config.DBPath = params.DBPath
	}
	if params.EmbedURL != "" {
		config.EmbedURL = params.EmbedURL
	}
	if params.Project != "" {
		config.Project = params.Project
	}
	if params.Provider != "" {
		config.Provider = params.Provider
	}
	if params.LogLevel != "" {
		config.LogLevel = params.LogLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero fields of other into c.
func (c *Config) mergeWith(other *Config) {
	setString(&c.DBPath, other.DBPath)
	setString(&c.EmbedURL, other.EmbedURL)
	setString(&c.Provider, other.Provider)
	setString(&c.Model, other.Model)
	setString(&c.FallbackModel, other.FallbackModel)
	setString(&c.APIKey, other.APIKey)
	setString(&c.LogLevel, other.LogLevel)
	setString(&c.Project, other.Project)
	setInt(&c.Dimension, other.Dimension)
	setInt(&c.ChunkSize, other.ChunkSize)
	setInt(&c.ChunkOverlap, other.ChunkOverlap)
	setInt(&c.Workers, other.Workers)
	setInt(&c.TopK, other.TopK)
	setInt(&c.CacheSize, other.CacheSize)
	if other.Threshold != 0 {
		c.Threshold = other.Threshold
	}
}

func (c *Config) applyEnvOverrides() {
	setString(&c.DBPath, os.Getenv("ZKK_DB"))
	setString(&c.EmbedURL, os.Getenv("ZKK_EMBED_URL"))
	setString(&c.Provider, os.Getenv("ZKK_PROVIDER"))
	setString(&c.Model, os.Getenv("ZKK_MODEL"))
	setString(&c.LogLevel, os.Getenv("ZKK_LOG_LEVEL"))
	setString(&c.APIKey, os.Getenv("OPENAI_API_KEY"))
	if v := os.Getenv("ZKK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "api", "openai", "local":
	default:
		return fmt.Errorf("unknown embedding provider %q (want api, openai or local)", c.Provider)
	}
	if c.ChunkSize < 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk size and overlap must not be negative")
	}
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [-1, 1]", c.Threshold)
	}
	return nil
}

// LockPath is the file guarding the database against concurrent index runs.
func (c *Config) LockPath() string { return c.DBPath + ".lock" }

// CacheDir holds the scan caches next to the database.
func (c *Config) CacheDir() string { return filepath.Join(filepath.Dir(c.DBPath), "cache") }

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
