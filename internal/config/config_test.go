package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
}

func TestDefaultBindings(t *testing.T) {
	b := DefaultConfig().Bindings
	if b.RecordToggle != "Ctrl+Alt+R" || b.Listen != "Ctrl+Alt+L" || b.StopListening != "Space" || b.EmergencyStop != "Ctrl+Shift+Q" {
		t.Errorf("Unexpected default bindings: %+v", b)
	}
	if m := DefaultConfig().Macro; m.StopKey != "S" || len(m.Combos) != 1 || m.Combos[0] != pasteCombo(runtime.GOOS) {
		t.Errorf("Unexpected default macro config: %+v", m)
	}
}

func TestPasteCombo(t *testing.T) {
	if got := pasteCombo("darwin"); got != "Cmd+V" {
		t.Errorf("Expected 'Cmd+V' on darwin, got '%s'", got)
	}
	for _, goos := range []string{"windows", "linux"} {
		if got := pasteCombo(goos); got != "Ctrl+V" {
			t.Errorf("Expected 'Ctrl+V' on %s, got '%s'", goos, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad url", func(c *Config) { c.Server.URL = "localhost:8000" }, "server.url"},
		{"negative timeout", func(c *Config) { c.Server.RequestTimeout = -1 }, "request_timeout"},
		{"bad chord", func(c *Config) { c.Bindings.Listen = "Ctrl+" }, "bindings.listen"},
		{"empty stop key", func(c *Config) { c.Macro.StopKey = "" }, "stop key"},
		{"bad policy", func(c *Config) { c.Macro.ClickPolicy = "nowhere" }, "click_policy"},
		{"bad audio", func(c *Config) { c.Audio.SampleRate = 0 }, "audio"},
		{"bad port", func(c *Config) { c.General.APIPort = 70000 }, "api_port"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path)

	cfg := DefaultConfig()
	cfg.Server.URL = "https://stt.example.com"
	cfg.Macro.ClickPolicy = "cursor"
	if err := m.Set(cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewManagerAt(path)
	changed := false
	loaded.RegisterChangeCallback(func() { changed = true })
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !changed {
		t.Error("Expected change callback after load")
	}
	got := loaded.Get()
	if got.Server.URL != "https://stt.example.com" || got.Macro.ClickPolicy != "cursor" {
		t.Errorf("Unexpected loaded config: %+v", got)
	}
}

func TestLoadMissingKeepsDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "absent.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if m.Get().Server.URL != DefaultConfig().Server.URL {
		t.Error("Expected defaults to be kept")
	}
}

func TestLoadPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"server":{"url":"http://10.0.0.2:9000"}}`), 0644)

	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Server.URL != "http://10.0.0.2:9000" {
		t.Errorf("Expected URL from file, got %s", cfg.Server.URL)
	}
	if cfg.Bindings.RecordToggle != "Ctrl+Alt+R" {
		t.Errorf("Expected default binding, got %s", cfg.Bindings.RecordToggle)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"macro":{"click_policy":"sideways"}}`), 0644)

	m := NewManagerAt(path)
	if err := m.Load(); err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if m.Get().Macro.ClickPolicy != "recorded" {
		t.Error("Expected previous config to be kept after a failed load")
	}

	os.WriteFile(path, []byte(`{not json`), 0644)
	if err := m.Load(); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}
