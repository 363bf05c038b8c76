package monitor

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arcline-data/lidard/internal/scandb"
)

//go:embed status.html
var statusHTML embed.FS

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "lidard", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	forwardingStatus := "disabled"
	if s.forwardDest != "" {
		forwardingStatus = fmt.Sprintf("enabled (%s)", s.forwardDest)
	}

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var completed, discarded, dropped int64
	if s.assembler != nil {
		completed, discarded, dropped = s.assembler.Counts()
	}

	data := struct {
		Source              string
		HTTPAddress         string
		ForwardingStatus    string
		Uptime              string
		Stats               StatsTotals
		RotationsCompleted  int64
		RotationsDiscarded  int64
		RotationsDropped    int64
		PersistenceEnabled  bool
		LiveClientCount     int
	}{
		Source:             s.source,
		HTTPAddress:        s.address,
		ForwardingStatus:   forwardingStatus,
		Uptime:             s.stats.Uptime().Round(time.Second).String(),
		Stats:              statsTotals(s),
		RotationsCompleted: completed,
		RotationsDiscarded: discarded,
		RotationsDropped:   dropped,
		PersistenceEnabled: s.db != nil,
		LiveClientCount:    s.hub.ClientCount(),
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// StatsTotals is the JSON shape of /api/stats.
type StatsTotals struct {
	Bytes              int64   `json:"bytes"`
	Packets            int64   `json:"packets"`
	ChecksumFailures   int64   `json:"checksum_failures"`
	Resyncs            int64   `json:"resyncs"`
	Samples            int64   `json:"samples"`
	Filtered           int64   `json:"filtered"`
	ForwardDrops       int64   `json:"forward_drops"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	RotationsCompleted int64   `json:"rotations_completed"`
	RotationsDiscarded int64   `json:"rotations_discarded"`
	RotationsDropped   int64   `json:"rotations_dropped"`
	LiveClients        int     `json:"live_clients"`
}

func statsTotals(s *Server) StatsTotals {
	snap := s.stats.Snapshot()
	totals := StatsTotals{
		Bytes:            snap.Bytes,
		Packets:          snap.Packets,
		ChecksumFailures: snap.ChecksumFailures,
		Resyncs:          snap.Resyncs,
		Samples:          snap.Samples,
		Filtered:         snap.Filtered,
		ForwardDrops:     snap.ForwardDrops,
		UptimeSeconds:    s.stats.Uptime().Seconds(),
		LiveClients:      s.hub.ClientCount(),
	}
	if s.assembler != nil {
		totals.RotationsCompleted, totals.RotationsDiscarded, totals.RotationsDropped = s.assembler.Counts()
	}
	return totals
}

// handleStats serves cumulative decode statistics as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, statsTotals(s))
}

// handleListRotations serves stored rotation summaries. Query params:
//   - session (optional): filter by session ID
//   - limit (optional; default 100)
func (s *Server) handleListRotations(w http.ResponseWriter, r *http.Request) {
	var sessionID int64
	if v := r.URL.Query().Get("session"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid session parameter")
			return
		}
		sessionID = parsed
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := s.db.ListRotations(r.Context(), sessionID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []scandb.RotationRecord{}
	}
	s.writeJSON(w, records)
}

// handleGetRotation serves one rotation with its samples.
func (s *Server) handleGetRotation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid rotation id")
		return
	}

	rec, err := s.db.GetRotation(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "rotation not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	samples, err := s.db.GetSamples(r.Context(), id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, struct {
		scandb.RotationRecord
		Samples []scandb.StoredSample `json:"samples"`
	}{rec, samples})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
