// Package scandb persists assembled rotations and their samples to
// SQLite. Schema changes are managed by golang-migrate; see migrations/.
package scandb

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/arcline-data/lidard/internal/scan"
)

type ScanDB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the scan database at path.
// The schema is applied separately via MigrateUp.
func Open(path string) (*ScanDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan database: %w", err)
	}
	// modernc.org/sqlite serializes writers itself; a single connection
	// avoids SQLITE_BUSY under concurrent rotation writes and API reads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure scan database: %w", err)
	}
	return &ScanDB{DB: db, path: path}, nil
}

// Session describes one capture run of the daemon.
type Session struct {
	ID        int64      `json:"id"`
	Source    string     `json:"source"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// RotationRecord is the stored form of a rotation, summary only. Samples
// are fetched separately because a rotation carries hundreds of them.
type RotationRecord struct {
	ID             uuid.UUID `json:"id"`
	SessionID      int64     `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	SampleCount    int       `json:"sample_count"`
	MinDistance    float64   `json:"min_distance_mm"`
	MeanDistance   float64   `json:"mean_distance_mm"`
	MaxDistance    float64   `json:"max_distance_mm"`
	MeanConfidence float64   `json:"mean_confidence"`
	Coverage       float64   `json:"coverage_deg"`
}

// StoredSample is one persisted lidar return.
type StoredSample struct {
	Angle      float64 `json:"angle"`
	Distance   uint16  `json:"distance"`
	Confidence uint8   `json:"confidence"`
}

// StartSession records the beginning of a capture run and returns its ID.
// source names the input, e.g. "/dev/ttyUSB0" or "replay:capture.bin".
func (db *ScanDB) StartSession(ctx context.Context, source string) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO sessions (source, started_at) VALUES (?, ?)",
		source, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *ScanDB) EndSession(ctx context.Context, sessionID int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ? WHERE id = ?",
		time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", sessionID, err)
	}
	return nil
}

// RecordRotation persists a rotation and all its samples in one
// transaction. A rotation is all-or-nothing; a partial write would skew
// every summary read after it.
func (db *ScanDB) RecordRotation(ctx context.Context, sessionID int64, rot *scan.Rotation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rotation transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rotations (
			id, session_id, started_at, completed_at,
			sample_count, min_distance_mm, mean_distance_mm, max_distance_mm,
			mean_confidence, coverage_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rot.ID.String(), sessionID, rot.StartedAt.UTC(), rot.CompletedAt.UTC(),
		rot.Summary.SampleCount, rot.Summary.MinDistance, rot.Summary.MeanDistance,
		rot.Summary.MaxDistance, rot.Summary.MeanConfidence, rot.Summary.Coverage)
	if err != nil {
		return fmt.Errorf("failed to insert rotation %s: %w", rot.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO samples (rotation_id, idx, angle, distance_mm, confidence) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range rot.Samples {
		if _, err := stmt.ExecContext(ctx, rot.ID.String(), i, s.Angle, s.Distance, s.Confidence); err != nil {
			return fmt.Errorf("failed to insert sample %d of rotation %s: %w", i, rot.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation %s: %w", rot.ID, err)
	}
	return nil
}

// ListSessions returns sessions newest first.
func (db *ScanDB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		"SELECT id, source, started_at, ended_at FROM sessions ORDER BY started_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Source, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListRotations returns rotation summaries for a session, newest first.
// A sessionID of 0 lists across all sessions.
func (db *ScanDB) ListRotations(ctx context.Context, sessionID int64, limit int) ([]RotationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, started_at, completed_at,
		       sample_count, min_distance_mm, mean_distance_mm, max_distance_mm,
		       mean_confidence, coverage_deg
		FROM rotations`
	args := []any{}
	if sessionID != 0 {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotations: %w", err)
	}
	defer rows.Close()

	var records []RotationRecord
	for rows.Next() {
		rec, err := scanRotationRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestRotation returns the most recently completed rotation summary, or
// sql.ErrNoRows if none has been recorded.
func (db *ScanDB) LatestRotation(ctx context.Context) (RotationRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, session_id, started_at, completed_at,
		       sample_count, min_distance_mm, mean_distance_mm, max_distance_mm,
		       mean_confidence, coverage_deg
		FROM rotations ORDER BY completed_at DESC LIMIT 1`)
	return scanRotationRow(row)
}

// GetRotation returns one rotation summary by ID, or sql.ErrNoRows.
func (db *ScanDB) GetRotation(ctx context.Context, id uuid.UUID) (RotationRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, session_id, started_at, completed_at,
		       sample_count, min_distance_mm, mean_distance_mm, max_distance_mm,
		       mean_confidence, coverage_deg
		FROM rotations WHERE id = ?`, id.String())
	return scanRotationRow(row)
}

// GetSamples returns the samples of a rotation in stored order.
func (db *ScanDB) GetSamples(ctx context.Context, rotationID uuid.UUID) ([]StoredSample, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT angle, distance_mm, confidence FROM samples WHERE rotation_id = ? ORDER BY idx",
		rotationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for rotation %s: %w", rotationID, err)
	}
	defer rows.Close()

	var samples []StoredSample
	for rows.Next() {
		var s StoredSample
		if err := rows.Scan(&s.Angle, &s.Distance, &s.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRotationRow(row rowScanner) (RotationRecord, error) {
	var rec RotationRecord
	var id string
	err := row.Scan(&id, &rec.SessionID, &rec.StartedAt, &rec.CompletedAt,
		&rec.SampleCount, &rec.MinDistance, &rec.MeanDistance, &rec.MaxDistance,
		&rec.MeanConfidence, &rec.Coverage)
	if err != nil {
		return rec, err
	}
	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("invalid rotation id %q: %w", id, err)
	}
	return rec, nil
}

// AttachAdminRoutes mounts database debugging endpoints under /debug/:
// a tailSQL console over the scan database and an on-demand backup
// download. These are reachable only via localhost/Tailscale.
func (db *ScanDB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Scan DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			os.Remove(backupPath)
		}()

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("failed to stream backup: %v", err)
		}
	}))
}
