// Golem transcription server
// Accepts audio uploads and returns their transcript as JSON
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golem/internal/server"
)

var (
	version = "0.1.0"
	showVer = flag.Bool("version", false, "Show version")
	addr    = flag.String("addr", "", "Listen address (overrides GOLEM_ADDR)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("golem-server version %s\n", version)
		return
	}

	cfg, err := server.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	backend, err := cfg.NewBackend()
	if err != nil {
		log.Fatalf("Failed to create backend: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.New(backend, cfg),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Transcription Server: listening on %s (backend %s)", cfg.Addr, backend.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
