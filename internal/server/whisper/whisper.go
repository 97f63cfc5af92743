// Package whisper provides the speech-recognition backends behind the transcription service.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Backend transcribes an audio file on disk
type Backend interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Name() string
}

// OpenAIConfig holds configuration for the OpenAI-compatible backend
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "whisper-1"
}

// OpenAI transcribes through the OpenAI audio API or any compatible server
// (whisper.cpp server, faster-whisper-server, LocalAI).
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend with defaults applied
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

// Transcribe uploads the file and returns the recognized text
func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("whisper api: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// FilePlaceholder in Command arguments is replaced by the audio path
const FilePlaceholder = "{file}"

// Command runs a local recognizer binary (e.g. whisper.cpp's whisper-cli) that
// prints the transcript on stdout.
type Command struct {
	Path string
	Args []string
}

// NewCommand creates a command backend. Without a placeholder the path is appended.
func NewCommand(path string, args []string) (*Command, error) {
	if path == "" {
		return nil, fmt.Errorf("whisper command is empty")
	}
	hasFile := false
	for _, a := range args {
		if strings.Contains(a, FilePlaceholder) {
			hasFile = true
			break
		}
	}
	if !hasFile {
		args = append(append([]string(nil), args...), FilePlaceholder)
	}
	return &Command{Path: path, Args: args}, nil
}

func (c *Command) Name() string { return "command:" + c.Path }

// Transcribe runs the command and returns its trimmed stdout
func (c *Command) Transcribe(ctx context.Context, path string) (string, error) {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, path)
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s failed: %w", c.Path, err)
		}
		return "", fmt.Errorf("%s failed: %w: %s", c.Path, err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}
