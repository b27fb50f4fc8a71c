package config

import (
	"os"
	"path/filepath"
)

// Config holds process-wide settings read from the environment.
// Call Load once at startup; individual packages receive the values
// they need rather than reading env vars themselves.
type Config struct {
	// Home is the data directory (database, prompt profiles)
	Home string

	// OllamaURL is the base URL of the Ollama server
	OllamaURL string

	// Model is the generation model used for extraction and synthesis
	Model string

	// EmbedModel is the embedding model (768 dims expected)
	EmbedModel string

	// DiscordToken enables the Discord capture source when set
	DiscordToken string

	// DiscordChannelID restricts capture to a single channel when set
	DiscordChannelID string
}

// Load reads configuration from the environment with sensible defaults.
func Load() Config {
	home := os.Getenv("RECALL_HOME")
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".recall")
		} else {
			home = ".recall"
		}
	}

	cfg := Config{
		Home:             home,
		OllamaURL:        os.Getenv("OLLAMA_URL"),
		Model:            os.Getenv("OLLAMA_MODEL"),
		EmbedModel:       os.Getenv("OLLAMA_EMBED_MODEL"),
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "nomic-embed-text"
	}
	return cfg
}

// DBPath returns the SQLite database path under Home.
func (c Config) DBPath() string {
	return filepath.Join(c.Home, "memory.db")
}

// PromptsDir returns the prompt profile directory under Home.
func (c Config) PromptsDir() string {
	return filepath.Join(c.Home, "prompts")
}
