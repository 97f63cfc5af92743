// Package api provides the local HTTP control API and WebSocket status feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golem/internal/macro"
	"golem/internal/orchestrator"
	"golem/internal/voice"
)

// Controller is the state machine driven by the API
type Controller interface {
	Status() orchestrator.Status
	RecordMacro() error
	StopMacro() (macro.Recording, error)
	Listen() error
	StopListening(ctx context.Context) (string, error)
	CopyTranscript() (string, error)
	Subscribe() (<-chan orchestrator.Status, func())
}

// Server provides HTTP API for local control
type Server struct {
	ctrl  Controller
	token string
	wsMgr *WSManager

	startOnce sync.Once
	mu        sync.Mutex
	srv       *http.Server
}

// NewServer creates a new API server. An empty token disables authentication.
func NewServer(ctrl Controller, token string) *Server {
	s := &Server{
		ctrl:  ctrl,
		token: token,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the routed handler with auth and panic recovery.
// The WebSocket hub starts on first use.
func (s *Server) Handler() http.Handler {
	s.startOnce.Do(func() {
		go s.wsMgr.start()
		go s.wsMgr.forwardStatus()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/macro/record", s.handleRecord)
	mux.HandleFunc("/api/macro/stop", s.handleStopMacro)
	mux.HandleFunc("/api/listen", s.handleListen)
	mux.HandleFunc("/api/listen/stop", s.handleStopListening)
	mux.HandleFunc("/api/transcript/copy", s.handleCopy)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on 127.0.0.1:port. It blocks until Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		log.Printf("Note: Golem will continue running without the control API.")
		return err
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = server
	s.mu.Unlock()

	log.Printf("Starting API server on %s", addr)

	// This is blocking
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the WebSocket hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			expectedAuth := "Bearer " + s.token

			// browsers cannot set headers on a WebSocket handshake
			queryOK := r.URL.Path == "/ws" && r.URL.Query().Get("token") == s.token

			if authHeader != expectedAuth && !queryOK {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps state machine errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var tErr *orchestrator.TransitionError
	switch {
	case errors.As(err, &tErr),
		errors.Is(err, macro.ErrAlreadyRecording),
		errors.Is(err, macro.ErrNoMacroRecorded),
		errors.Is(err, macro.ErrEmptyMacro),
		errors.Is(err, voice.ErrNoAudio),
		errors.Is(err, orchestrator.ErrNoTranscript):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrTerminated):
		status = http.StatusServiceUnavailable
	}
	log.Printf("API: request failed: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleRecord handles POST /api/macro/record
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctrl.RecordMacro(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStopMacro handles POST /api/macro/stop
func (s *Server) handleStopMacro(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	rec, err := s.ctrl.StopMacro()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListen handles POST /api/listen
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctrl.Listen(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStopListening handles POST /api/listen/stop. It answers after the replay.
func (s *Server) handleStopListening(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	// a dropped HTTP client must not abort a replay half way
	text, err := s.ctrl.StopListening(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// handleCopy handles POST /api/transcript/copy
func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	text, err := s.ctrl.CopyTranscript()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
