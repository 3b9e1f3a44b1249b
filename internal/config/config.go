// Package config handles configuration loading and validation for lvec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete lvec configuration.
type Config struct {
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Tokens     TokensConfig     `mapstructure:"tokens"`
	Import     ImportConfig     `mapstructure:"import"`
	Ignore     []string         `mapstructure:"ignore"`
}

// EmbeddingsConfig selects and configures the default embedding function.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	Local    LocalEmbedConfig  `mapstructure:"local"`
	Ollama   OllamaEmbedConfig `mapstructure:"ollama"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`
}

// LocalEmbedConfig configures the built-in hashing embedder.
type LocalEmbedConfig struct {
	Dimensions int `mapstructure:"dimensions"`
}

// OllamaEmbedConfig configures Ollama embeddings.
type OllamaEmbedConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// DatabaseConfig configures where collections are stored.
// An empty Path or Ephemeral=true selects the in-memory store.
type DatabaseConfig struct {
	Path      string `mapstructure:"path"`
	Ephemeral bool   `mapstructure:"ephemeral"`
}

// TokensConfig configures token counting.
type TokensConfig struct {
	Encoding string `mapstructure:"encoding"`
}

// ImportConfig configures directory imports.
type ImportConfig struct {
	MaxFileSize  int `mapstructure:"max_file_size"`
	MaxFileCount int `mapstructure:"max_file_count"`
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			Local: LocalEmbedConfig{
				Dimensions: DefaultLocalDimensions,
			},
			Ollama: OllamaEmbedConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaEmbedModel,
			},
			OpenAI: OpenAIEmbedConfig{
				Model: DefaultOpenAIEmbedModel,
			},
		},
		Database: DatabaseConfig{
			Path: DefaultDataDir(),
		},
		Tokens: TokensConfig{
			Encoding: DefaultTokenEncoding,
		},
		Import: ImportConfig{
			MaxFileSize:  DefaultMaxFileSize,
			MaxFileCount: DefaultMaxFileCount,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Ignore: DefaultIgnorePatterns(),
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())
		viper.AddConfigPath(".")

		// A project-local .lvecrc.yaml wins over the global file
		if rcPath := findRCFile(); rcPath != "" {
			viper.SetConfigFile(rcPath)
		}
	}

	viper.SetEnvPrefix("LVEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	loadAPIKeysFromEnv()

	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	viper.SetDefault("embeddings.provider", DefaultEmbeddingProvider)
	viper.SetDefault("embeddings.local.dimensions", DefaultLocalDimensions)
	viper.SetDefault("embeddings.ollama.url", DefaultOllamaURL)
	viper.SetDefault("embeddings.ollama.model", DefaultOllamaEmbedModel)
	viper.SetDefault("embeddings.openai.model", DefaultOpenAIEmbedModel)

	viper.SetDefault("database.path", DefaultDataDir())
	viper.SetDefault("database.ephemeral", false)

	viper.SetDefault("tokens.encoding", DefaultTokenEncoding)

	viper.SetDefault("import.max_file_size", DefaultMaxFileSize)
	viper.SetDefault("import.max_file_count", DefaultMaxFileCount)
	viper.SetDefault("import.chunk_size", DefaultChunkSize)
	viper.SetDefault("import.chunk_overlap", DefaultChunkOverlap)

	viper.SetDefault("ignore", DefaultIgnorePatterns())
}

// findRCFile searches for .lvecrc.yaml starting from the current directory.
func findRCFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		rcPath := filepath.Join(dir, ".lvecrc.yaml")
		if _, err := os.Stat(rcPath); err == nil {
			return rcPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// loadAPIKeysFromEnv fills the OpenAI key from OPENAI_API_KEY when the config has none.
func loadAPIKeysFromEnv() {
	if cfg.Embeddings.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Embeddings.OpenAI.APIKey = key
		}
	}
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// IsEphemeral reports whether the configured store is in-memory.
func (c *Config) IsEphemeral() bool {
	return c.Database.Ephemeral || c.Database.Path == ""
}
