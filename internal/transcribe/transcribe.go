// Package transcribe uploads recorded audio to the transcription service.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/net/http2"
)

// DefaultTextPath is the response field holding the transcript
const DefaultTextPath = "text"

// RequestError reports a failed upload: a transport error, a non-200 status or an unusable body
type RequestError struct {
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("transcription request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transcription request failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transcription request failed (status %d): %s", e.Status, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Options configures a Client
type Options struct {
	// URL is the service base URL, e.g. http://127.0.0.1:8000
	URL            string
	Token          string
	TextPath       string
	RequestTimeout time.Duration
	EnableHTTP2    bool
}

// Client performs transcription uploads. It never retries.
type Client struct {
	baseURL    string
	token      string
	textPath   string
	httpClient *http.Client
}

// New creates a client. httpClient may be nil, in which case one is built from opts.
func New(opts Options, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("transcription server URL is empty")
	}
	if opts.TextPath == "" {
		opts.TextPath = DefaultTextPath
	}
	if httpClient == nil {
		httpClient = newHTTPClient(opts)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		token:      opts.Token,
		textPath:   opts.TextPath,
		httpClient: httpClient,
	}, nil
}

func newHTTPClient(opts Options) *http.Client {
	tr := &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   opts.RequestTimeout,
	}
}

// Transcribe uploads the audio file as multipart field "file" and returns the transcript
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy audio file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "golem-client/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	log.Printf("Transcribe: %s answered %d in %v", c.baseURL, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Status: resp.StatusCode, Body: formatResponse(respBody)}
	}
	if !gjson.ValidBytes(respBody) {
		return "", &RequestError{Status: resp.StatusCode, Body: formatResponse(respBody), Err: fmt.Errorf("response is not JSON")}
	}
	text := gjson.GetBytes(respBody, c.textPath)
	if !text.Exists() {
		return "", &RequestError{Status: resp.StatusCode, Body: formatResponse(respBody), Err: fmt.Errorf("response has no %q field", c.textPath)}
	}
	return strings.TrimSpace(text.String()), nil
}

// Health probes GET / and returns the service banner
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Status: resp.StatusCode, Body: formatResponse(respBody)}
	}
	return gjson.GetBytes(respBody, "message").String(), nil
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	if !utf8.Valid(b) {
		return fmt.Sprintf("<binary %d bytes>", len(b))
	}
	if detail := gjson.GetBytes(b, "detail"); detail.Exists() {
		return detail.String()
	}
	s := string(b)
	if len(s) > maxText {
		return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
	}
	return s
}
