package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mnemonic-kb/mnemonic/persistence"
)

// Config represents the complete Mnemonic server configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Note store configuration
	Store persistence.StoreConfig `yaml:"store" json:"store"`

	// External capability providers
	Providers ProvidersConfig `yaml:"providers" json:"providers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ProvidersConfig contains the external capability provider settings
type ProvidersConfig struct {
	// HuggingFace Inference API (embeddings)
	HuggingFace HuggingFaceConfig `yaml:"huggingface" json:"huggingface"`

	// Groq API (completions and transcription)
	Groq GroqConfig `yaml:"groq" json:"groq"`
}

// HuggingFaceConfig contains embedding provider configuration
type HuggingFaceConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// GroqConfig contains completion and transcription provider configuration
type GroqConfig struct {
	Endpoint           string        `yaml:"endpoint" json:"endpoint"`
	CompletionModel    string        `yaml:"completion_model" json:"completion_model"`
	TranscriptionModel string        `yaml:"transcription_model" json:"transcription_model"`
	APIKey             string        `yaml:"api_key" json:"api_key"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
}

// Default returns the default configuration. Provider API keys come from
// the environment (HF_TOKEN, GROQ_API_KEY) so they never live in files.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: persistence.DefaultStoreConfig(),
		Providers: ProvidersConfig{
			HuggingFace: HuggingFaceConfig{
				Model:   "sentence-transformers/all-MiniLM-L6-v2",
				APIKey:  os.Getenv("HF_TOKEN"),
				Timeout: 30 * time.Second,
			},
			Groq: GroqConfig{
				CompletionModel:    "llama-3.1-8b-instant",
				TranscriptionModel: "whisper-large-v3",
				APIKey:             os.Getenv("GROQ_API_KEY"),
				Timeout:            60 * time.Second,
			},
		},
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := persistence.ValidateConfig(c.Store); err != nil {
		return err
	}
	if c.Providers.HuggingFace.APIKey == "" {
		return fmt.Errorf("HuggingFace API key is required (set HF_TOKEN or providers.huggingface.api_key)")
	}
	if c.Providers.Groq.APIKey == "" {
		return fmt.Errorf("Groq API key is required (set GROQ_API_KEY or providers.groq.api_key)")
	}
	return nil
}
