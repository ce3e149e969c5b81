package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            string        `yaml:"port"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	MaxSessionBytes int64         `yaml:"max_session_bytes"`
	DatabasePath    string        `yaml:"database_path"`
	Transcription   Transcription `yaml:"transcription"`
	Gemini          Gemini        `yaml:"gemini"`
	OpenAI          OpenAI        `yaml:"openai"`
	FPT             FPT           `yaml:"fpt"`
	Google          Google        `yaml:"google"`
}

// Transcription controls how the orchestrator talks to the provider
type Transcription struct {
	Provider   string        `yaml:"provider"`
	Language   string        `yaml:"language"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type Gemini struct {
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}

type OpenAI struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type FPT struct {
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
}

// Google holds Speech-to-Text credentials. KeyFile may be an API key,
// a path to a service account JSON file or the JSON itself.
type Google struct {
	ProjectID string `yaml:"project_id"`
	KeyFile   string `yaml:"key_file"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:            "8080",
		MaxUploadBytes:  25 << 20,
		MaxSessionBytes: 100 << 20,
		Transcription: Transcription{
			Provider: "gemini",
			Language: "pt-BR",
			Timeout:  60 * time.Second,
		},
		Gemini: Gemini{
			URL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent",
		},
		OpenAI: OpenAI{
			Model: "whisper-1",
		},
		FPT: FPT{
			URL: "https://api.fpt.ai/hmi/asr/v1",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// yaml overlay and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)

	c.Transcription.Provider = strings.ToLower(getEnv("STT_PROVIDER", c.Transcription.Provider))
	c.Transcription.Language = getEnv("TRANSCRIBE_LANGUAGE", c.Transcription.Language)

	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.URL = getEnv("GEMINI_API_URL", c.Gemini.URL)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_STT_MODEL", c.OpenAI.Model)
	c.FPT.APIKey = getEnv("FPT_AI_API_KEY", c.FPT.APIKey)
	c.FPT.URL = getEnv("FPT_AI_STT_URL", c.FPT.URL)
	c.Google.ProjectID = getEnv("GOOGLE_STT_PROJECT_ID", c.Google.ProjectID)
	c.Google.KeyFile = getEnv("GOOGLE_STT_KEY_FILE", c.Google.KeyFile)

	if v := os.Getenv("TRANSCRIBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSCRIBE_TIMEOUT %q: %w", v, err)
		}
		c.Transcription.Timeout = d
	}
	if v := os.Getenv("TRANSCRIBE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSCRIBE_MAX_RETRIES %q: %w", v, err)
		}
		c.Transcription.MaxRetries = n
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.MaxUploadBytes = n
	}
	if v := os.Getenv("MAX_SESSION_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_SESSION_BYTES %q: %w", v, err)
		}
		c.MaxSessionBytes = n
	}
	return nil
}

// Validate checks the server and transcription sections. Provider
// credentials are checked by the stt factory since only one is used.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxSessionBytes <= 0 {
		return fmt.Errorf("max_session_bytes must be positive, got %d", c.MaxSessionBytes)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	return nil
}

func (t *Transcription) Validate() error {
	switch t.Provider {
	case "gemini", "openai", "fpt", "google":
	default:
		return fmt.Errorf("unsupported provider %q. Supported: gemini, openai, fpt, google", t.Provider)
	}
	if t.Language == "" {
		return fmt.Errorf("language is required")
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", t.Timeout)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
