// Package autostart registers Golem to launch at login.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// ErrUnsupported is returned on platforms without a login-item mechanism
var ErrUnsupported = errors.New("autostart not supported on this platform")

const agentLabel = "io.golem.agent"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>{{range .Args}}
        <string>{{.}}</string>{{end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=Golem
Comment=Voice-to-macro assistant
Exec={{.Command}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

// Launcher manages the login item for one executable
type Launcher struct {
	goos     string
	home     string
	execPath string
	args     []string
}

// New creates a launcher for the running executable with extra arguments
func New(args ...string) (*Launcher, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Launcher{goos: runtime.GOOS, home: home, execPath: execPath, args: args}, nil
}

// entryPath returns the file that registers the login item (macOS and Linux)
func (l *Launcher) entryPath() (string, error) {
	switch l.goos {
	case "darwin":
		return filepath.Join(l.home, "Library", "LaunchAgents", agentLabel+".plist"), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return filepath.Join(l.home, ".config", "autostart", "golem.desktop"), nil
	}
	return "", ErrUnsupported
}

// Enable registers the executable to start on login
func (l *Launcher) Enable() error {
	if l.goos == "windows" {
		return enableRegistry(l.command())
	}

	path, err := l.entryPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var tmpl *template.Template
	if l.goos == "darwin" {
		tmpl = template.Must(template.New("plist").Parse(macLaunchAgentPlist))
	} else {
		tmpl = template.Must(template.New("desktop").Parse(xdgDesktopEntry))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct {
		Label          string
		ExecutablePath string
		Args           []string
		Command        string
	}{agentLabel, l.execPath, l.args, l.command()})
}

// Disable removes the login item. Removing a missing item is not an error.
func (l *Launcher) Disable() error {
	if l.goos == "windows" {
		return disableRegistry()
	}

	path, err := l.entryPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if the login item exists
func (l *Launcher) IsEnabled() bool {
	if l.goos == "windows" {
		return registryEnabled()
	}

	path, err := l.entryPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Sync makes the login item match the desired setting
func (l *Launcher) Sync(enabled bool) error {
	if l.IsEnabled() == enabled {
		return nil
	}
	if enabled {
		return l.Enable()
	}
	return l.Disable()
}

// command is the executable and its arguments as one quoted command line
func (l *Launcher) command() string {
	parts := []string{quote(l.execPath)}
	for _, a := range l.args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
