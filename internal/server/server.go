// Package server implements the HTTP transcription service used by the desktop client.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"golem/internal/server/whisper"
)

// AllowedExtensions lists the audio container types accepted by /transcribe
var AllowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

const multipartMemory = 32 << 20

// Server serves the transcription endpoints
type Server struct {
	backend   whisper.Backend
	maxUpload int64
	origins   []string
	tempDir   string
	mux       *chi.Mux
}

// New creates a server around a recognizer backend
func New(backend whisper.Backend, cfg *Config) *Server {
	s := &Server{
		backend:   backend,
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		origins:   cfg.CORSOrigins,
		tempDir:   os.TempDir(),
		mux:       chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.mux
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(s.origins))

	r.Get("/", s.handleRoot)
	r.Post("/transcribe", s.handleTranscribe)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Golem transcription backend is running.",
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB.", s.maxUpload>>20))
			return
		}
		writeDetail(w, http.StatusBadRequest, "Expected a multipart form with a 'file' field.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !AllowedExtensions[ext] {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type %q.", ext))
		return
	}

	path := filepath.Join(s.tempDir, "golem-upload-"+uuid.New().String()+ext)
	if err := saveUpload(path, file); err != nil {
		log.Printf("Transcription Server: failed to store upload: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Could not store upload.")
		return
	}
	defer os.Remove(path)

	text, err := s.backend.Transcribe(r.Context(), path)
	if err != nil {
		log.Printf("Transcription Server: %s failed on %s: %v", s.backend.Name(), header.Filename, err)
		writeDetail(w, http.StatusInternalServerError, "Transcription failed: "+err.Error())
		return
	}

	text = strings.TrimSpace(text)
	log.Printf("Transcription Server: transcribed %s (%d bytes) -> %d chars", header.Filename, header.Size, len(text))
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func saveUpload(path string, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
