package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "local"
	DefaultLocalDimensions   = 384
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// Token counting
	DefaultTokenEncoding = "cl100k_base"

	// Import defaults
	DefaultMaxFileSize  = 1 << 20 // 1MB
	DefaultMaxFileCount = 5000
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 80

	// Database
	DefaultDBFileName = "lvec.sqlite3"
	DefaultCollection = "travel_policies"
)

// DefaultIgnorePatterns returns the file patterns skipped by import and watch.
func DefaultIgnorePatterns() []string {
	return []string{
		// Version control
		".git/",
		".svn/",
		".hg/",

		// Dependencies and build output
		"node_modules/",
		"vendor/",
		".venv/",
		"venv/",
		"__pycache__/",
		"dist/",
		"build/",

		// Editors
		".idea/",
		".vscode/",
		"*.swp",
		"*~",

		// Local databases
		"*.sqlite3",
		"*.sqlite3-*",
		"*.db",

		// Misc
		".DS_Store",
		".env",
		".env.*",
		"*.log",
	}
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/lvec"
	}
	return filepath.Join(home, ".config", "lvec")
}

// DefaultDataDir returns the default durable storage directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/lvec"
	}
	return filepath.Join(home, ".local", "share", "lvec")
}

// DatabaseFile returns the SQLite file used inside a storage directory.
func DatabaseFile(dir string) string {
	return filepath.Join(dir, DefaultDBFileName)
}
