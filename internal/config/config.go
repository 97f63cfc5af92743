// Package config provides configuration management for the Golem desktop client.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golem/internal/input"
	"golem/internal/macro"
)

// Config represents the application configuration
type Config struct {
	// Server points at the transcription service
	Server ServerConfig `json:"server"`

	// Bindings are the global key chords, read at startup only
	Bindings Bindings `json:"bindings"`

	// Macro controls capture and replay
	Macro MacroConfig `json:"macro"`

	// Audio controls microphone capture
	Audio AudioConfig `json:"audio"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// ServerConfig describes how to reach the transcription service
type ServerConfig struct {
	// URL is the service base URL (e.g., "http://127.0.0.1:8000")
	URL string `json:"url"`

	// RequestTimeout is the upload timeout in seconds
	RequestTimeout int `json:"request_timeout"`

	// TextPath is the JSON path of the transcript in the response (default: "text")
	TextPath string `json:"text_path,omitempty"`

	// Token is an optional bearer token sent with uploads
	Token string `json:"token,omitempty"`

	// EnableHTTP2 negotiates HTTP/2 with TLS servers
	EnableHTTP2 bool `json:"enable_http2"`
}

// Bindings are the chords that drive the state machine
type Bindings struct {
	RecordToggle  string `json:"record_toggle"`
	Listen        string `json:"listen"`
	StopListening string `json:"stop_listening"`
	EmergencyStop string `json:"emergency_stop"`
}

// MacroConfig controls the capturer and player
type MacroConfig struct {
	// StopKey ends macro recording; it is never recorded
	StopKey string `json:"stop_key"`

	// Combos are the key combos captured as macro steps (e.g., "Ctrl+V")
	Combos []string `json:"combos"`

	// ClickPolicy is "recorded" (replay at the recorded position) or "cursor"
	ClickPolicy string `json:"click_policy"`
}

// AudioConfig controls microphone capture
type AudioConfig struct {
	SampleRate      int `json:"sample_rate"`
	Channels        int `json:"channels"`
	FramesPerBuffer int `json:"frames_per_buffer"`

	// TempDir holds recordings while they are uploaded (default: OS temp dir)
	TempDir string `json:"temp_dir,omitempty"`

	// KeepAudio leaves recordings on disk after upload
	KeepAudio bool `json:"keep_audio"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// ShowNotifications shows desktop notifications on status changes
	ShowNotifications bool `json:"show_notifications"`

	// APIEnabled enables the local control API
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server (default: 18090)
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`

	// LaunchAtLogin registers Golem as a login item
	LaunchAtLogin bool `json:"launch_at_login"`
}

// pasteCombo is the platform's paste shortcut
func pasteCombo(goos string) string {
	if goos == "darwin" {
		return "Cmd+V"
	}
	return "Ctrl+V"
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://127.0.0.1:8000",
			RequestTimeout: 60,
			TextPath:       "text",
		},
		Bindings: Bindings{
			RecordToggle:  "Ctrl+Alt+R",
			Listen:        "Ctrl+Alt+L",
			StopListening: "Space",
			EmergencyStop: "Ctrl+Shift+Q",
		},
		Macro: MacroConfig{
			StopKey:     "S",
			Combos:      []string{pasteCombo(runtime.GOOS)},
			ClickPolicy: string(macro.ClickAtRecorded),
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			FramesPerBuffer: 1024,
		},
		General: GeneralConfig{
			ShowNotifications: true,
			APIEnabled:        true,
			APIPort:           18090,
		},
	}
}

// Timeout returns the upload timeout as a duration
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url %q must be an http(s) URL", c.Server.URL))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must not be negative"))
	}

	for name, chord := range map[string]string{
		"record_toggle":  c.Bindings.RecordToggle,
		"listen":         c.Bindings.Listen,
		"stop_listening": c.Bindings.StopListening,
		"emergency_stop": c.Bindings.EmergencyStop,
	} {
		if _, err := input.ParseCombo(chord); err != nil {
			errs = append(errs, fmt.Errorf("bindings.%s: %w", name, err))
		}
	}

	if _, err := macro.NewCapturer(c.Macro.StopKey, c.Macro.Combos); err != nil {
		errs = append(errs, fmt.Errorf("macro: %w", err))
	}
	if _, err := macro.ParseClickPolicy(c.Macro.ClickPolicy); err != nil {
		errs = append(errs, fmt.Errorf("macro.click_policy: %w", err))
	}

	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 || c.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio: sample_rate, channels and frames_per_buffer must be positive"))
	}
	if c.General.APIEnabled && (c.General.APIPort <= 0 || c.General.APIPort > 65535) {
		errs = append(errs, fmt.Errorf("general.api_port %d out of range", c.General.APIPort))
	}

	return errors.Join(errs...)
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit file path
func NewManagerAt(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "golem")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "golem")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "golem")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file location
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		// No config file, use defaults
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse config %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration after validating it
func (m *Manager) Set(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
