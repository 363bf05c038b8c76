package main

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"gonum.org/v1/plot/plotter"

	"github.com/arcline-data/lidard/internal/scandb"
)

func testRecord(sampleCount int) (scandb.RotationRecord, []scandb.StoredSample) {
	samples := make([]scandb.StoredSample, sampleCount)
	for i := range samples {
		samples[i] = scandb.StoredSample{
			Angle:      float64(i) * 360.0 / float64(sampleCount),
			Distance:   1000,
			Confidence: uint8(101 + i%150),
		}
	}
	rec := scandb.RotationRecord{
		ID:          uuid.New(),
		CompletedAt: time.Now(),
		SampleCount: sampleCount,
		Coverage:    359,
	}
	return rec, samples
}

func TestToXYs(t *testing.T) {
	samples := []scandb.StoredSample{
		{Angle: 0, Distance: 1000, Confidence: 200},
		{Angle: 90, Distance: 1000, Confidence: 200},
		{Angle: 180, Distance: 500, Confidence: 200},
		{Angle: 270, Distance: 2000, Confidence: 200},
	}

	want := plotter.XYs{
		{X: 1000, Y: 0},
		{X: 0, Y: 1000},
		{X: -500, Y: 0},
		{X: 0, Y: -2000},
	}

	got := toXYs(samples)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("toXYs mismatch (-want +got):\n%s", diff)
	}
}

func TestConfidenceColorRamp(t *testing.T) {
	low := confidenceColor(101).(color.RGBA)
	high := confidenceColor(255).(color.RGBA)

	if low.B <= low.R {
		t.Errorf("low confidence should be blue-dominant, got %+v", low)
	}
	if high.R <= high.B {
		t.Errorf("high confidence should be red-dominant, got %+v", high)
	}
	if high.R != 255 || high.B != 0 {
		t.Errorf("max confidence = %+v, want pure red", high)
	}
}

func TestRenderPNG(t *testing.T) {
	rec, samples := testRecord(360)
	path := filepath.Join(t.TempDir(), "rotation.png")

	if err := RenderPNG(rec, samples, path); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}

	header := make([]byte, 8)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Read(header); err != nil {
		t.Fatal(err)
	}
	if string(header[1:4]) != "PNG" {
		t.Errorf("output is not a PNG, header %x", header)
	}
}

func TestRenderHTML(t *testing.T) {
	rec, samples := testRecord(360)
	path := filepath.Join(t.TempDir(), "rotation.html")

	if err := RenderHTML(rec, samples, path); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	page := string(content)
	if !strings.Contains(page, "echarts") {
		t.Error("output does not reference echarts")
	}
	if !strings.Contains(page, rec.ID.String()) {
		t.Error("output does not name the rotation")
	}
}
