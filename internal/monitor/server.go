// Package monitor serves the HTTP interface of the daemon: a status
// page, JSON APIs over decode statistics and stored rotations, a rendered
// view of the latest scan, and a websocket feed of live rotations.
package monitor

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/arcline-data/lidard/internal/ld06"
	"github.com/arcline-data/lidard/internal/scan"
	"github.com/arcline-data/lidard/internal/scandb"
)

// Config contains configuration options for the web server.
type Config struct {
	Address string
	Stats   *ld06.DecodeStats

	// DB enables the rotation APIs and chart endpoints when set.
	DB *scandb.ScanDB

	// Assembler contributes rotation counters to /api/stats when set.
	Assembler *scan.Assembler

	// Source describes the input feeding the decoder, e.g. "/dev/ttyUSB0".
	Source string

	// ForwardDest is the UDP destination for CSV forwarding, empty when
	// forwarding is disabled.
	ForwardDest string

	// AdminAttachers add /debug/ routes (serial tail, tailsql console).
	AdminAttachers []func(*http.ServeMux)
}

// Server handles the HTTP interface for monitoring the decoder.
type Server struct {
	address     string
	stats       *ld06.DecodeStats
	db          *scandb.ScanDB
	assembler   *scan.Assembler
	source      string
	forwardDest string
	hub         *Hub
	server      *http.Server
}

// NewServer creates a web server with the provided configuration.
func NewServer(config Config) *Server {
	s := &Server{
		address:     config.Address,
		stats:       config.Stats,
		db:          config.DB,
		assembler:   config.Assembler,
		source:      config.Source,
		forwardDest: config.ForwardDest,
		hub:         NewHub(),
	}

	mux := s.setupRoutes()
	for _, attach := range config.AdminAttachers {
		attach(mux)
	}
	s.server = &http.Server{
		Addr:    s.address,
		Handler: mux,
	}

	return s
}

// Hub returns the live rotation hub so the pipeline can publish into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	go func() {
		log.Printf("Starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/live", s.handleLive)

	if s.db != nil {
		mux.HandleFunc("/api/rotations", s.handleListRotations)
		mux.HandleFunc("/api/rotations/{id}", s.handleGetRotation)
		mux.HandleFunc("/scan/latest", s.handleLatestScan)
	}

	return mux
}

// Close shuts down the web server.
func (s *Server) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
