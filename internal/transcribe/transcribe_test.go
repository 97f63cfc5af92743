package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart field 'file': %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "clip.wav" || string(data) != "RIFF....WAVE" {
			t.Errorf("Unexpected upload %s: %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" hello world "}`))
	}))
	defer srv.Close()

	c, err := New(Options{URL: srv.URL + "/", Token: "secret"}, srv.Client())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	text, err := c.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", text)
	}
}

func TestTranscribeCustomTextPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"segments":[{"text":"first"}],"text":"nested"}}`))
	}))
	defer srv.Close()

	c, _ := New(Options{URL: srv.URL, TextPath: "result.text"}, srv.Client())
	text, err := c.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "nested" {
		t.Errorf("Expected 'nested', got %q", text)
	}
}

func TestTranscribeServerErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Transcription failed: model crashed"}`))
	}))
	defer srv.Close()

	c, _ := New(Options{URL: srv.URL}, srv.Client())
	_, err := c.Transcribe(context.Background(), writeAudio(t))

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", reqErr.Status)
	}
	if reqErr.Body != "Transcription failed: model crashed" {
		t.Errorf("Expected detail in body, got %q", reqErr.Body)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected exactly one attempt, got %d", n)
	}
}

func TestTranscribeMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c, _ := New(Options{URL: srv.URL}, srv.Client())
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %v", err)
	}
}

func TestTranscribeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(Options{URL: url}, nil)
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %v", err)
	}
	if reqErr.Status != 0 || reqErr.Err == nil {
		t.Errorf("Expected transport error, got %+v", reqErr)
	}
}

func TestTranscribeCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _ := New(Options{URL: srv.URL}, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Transcribe(ctx, writeAudio(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMissingFile(t *testing.T) {
	c, _ := New(Options{URL: "http://127.0.0.1:1"}, nil)
	if _, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Error("Expected error for empty URL")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Golem transcription backend is running."}`))
	}))
	defer srv.Close()

	c, _ := New(Options{URL: srv.URL}, srv.Client())
	msg, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if msg != "Golem transcription backend is running." {
		t.Errorf("Unexpected banner %q", msg)
	}
}
