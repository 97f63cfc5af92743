package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golem/internal/server/whisper"
)

// Config holds the transcription service settings, read from the environment
type Config struct {
	Addr        string
	Backend     string // "openai" or "command"
	MaxUploadMB int
	CORSOrigins []string

	OpenAIKey     string
	OpenAIBaseURL string
	Model         string

	Command     string
	CommandArgs []string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	maxUpload, err := getEnvInt("GOLEM_MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid GOLEM_MAX_UPLOAD_MB: %w", err)
	}

	cfg := &Config{
		Addr:          getEnv("GOLEM_ADDR", "127.0.0.1:8000"),
		Backend:       strings.ToLower(getEnv("GOLEM_BACKEND", "openai")),
		MaxUploadMB:   maxUpload,
		CORSOrigins:   splitList(getEnv("GOLEM_CORS_ORIGINS", "*"), ","),
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Model:         getEnv("WHISPER_MODEL", "whisper-1"),
		Command:       getEnv("WHISPER_COMMAND", "whisper-cli"),
		CommandArgs:   strings.Fields(getEnv("WHISPER_ARGS", "-nt -np -f {file}")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend can be built
func (c *Config) Validate() error {
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.MaxUploadMB)
	}
	switch c.Backend {
	case "openai":
		if c.OpenAIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when OPENAI_BASE_URL is not set")
		}
	case "command":
		if c.Command == "" {
			return fmt.Errorf("WHISPER_COMMAND is required for the command backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want openai or command)", c.Backend)
	}
	return nil
}

// NewBackend builds the configured recognizer
func (c *Config) NewBackend() (whisper.Backend, error) {
	switch c.Backend {
	case "openai":
		return whisper.NewOpenAI(whisper.OpenAIConfig{
			APIKey:  c.OpenAIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   c.Model,
		}), nil
	case "command":
		return whisper.NewCommand(c.Command, c.CommandArgs)
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitList(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
