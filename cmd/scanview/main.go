// Command scanview renders rotations recorded by lidard. It can list the
// stored rotations, render one as a PNG scatter plot, or emit an
// interactive HTML chart.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/arcline-data/lidard/internal/scandb"
	"github.com/arcline-data/lidard/internal/version"
)

var (
	dbFile      = flag.String("db", "lidard.db", "Path to the SQLite scan database")
	list        = flag.Bool("list", false, "List stored rotations and exit")
	limit       = flag.Int("limit", 20, "Maximum rotations to list")
	rotationID  = flag.String("rotation", "", "Rotation UUID to render (default: latest)")
	pngPath     = flag.String("png", "", "Render the rotation to this PNG file")
	htmlPath    = flag.String("html", "", "Render the rotation to this HTML file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("scanview %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	db, err := scandb.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open scan database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if *list {
		if err := listRotations(ctx, db, *limit); err != nil {
			log.Fatalf("Failed to list rotations: %v", err)
		}
		return
	}

	if *pngPath == "" && *htmlPath == "" {
		log.Fatal("Nothing to do: pass -list, -png, or -html")
	}

	rec, err := resolveRotation(ctx, db, *rotationID)
	if err != nil {
		log.Fatalf("Failed to resolve rotation: %v", err)
	}
	samples, err := db.GetSamples(ctx, rec.ID)
	if err != nil {
		log.Fatalf("Failed to load samples: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("Rotation %s has no samples", rec.ID)
	}

	if *pngPath != "" {
		if err := RenderPNG(rec, samples, *pngPath); err != nil {
			log.Fatalf("Failed to render PNG: %v", err)
		}
		log.Printf("Wrote %s (%d samples)", *pngPath, len(samples))
	}
	if *htmlPath != "" {
		if err := RenderHTML(rec, samples, *htmlPath); err != nil {
			log.Fatalf("Failed to render HTML: %v", err)
		}
		log.Printf("Wrote %s (%d samples)", *htmlPath, len(samples))
	}
}

// resolveRotation returns the named rotation, or the latest one when id
// is empty.
func resolveRotation(ctx context.Context, db *scandb.ScanDB, id string) (scandb.RotationRecord, error) {
	if id == "" {
		rec, err := db.LatestRotation(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return rec, errors.New("no rotations recorded")
		}
		return rec, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return scandb.RotationRecord{}, fmt.Errorf("invalid rotation id %q: %w", id, err)
	}
	rec, err := db.GetRotation(ctx, parsed)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("rotation %s not found", id)
	}
	return rec, err
}

func listRotations(ctx context.Context, db *scandb.ScanDB, limit int) error {
	records, err := db.ListRotations(ctx, 0, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no rotations recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMPLETED\tSAMPLES\tCOVERAGE\tMEAN DIST")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f°\t%.0f mm\n",
			rec.ID, rec.CompletedAt.Format("2006-01-02 15:04:05"),
			rec.SampleCount, rec.Coverage, rec.MeanDistance)
	}
	return w.Flush()
}
