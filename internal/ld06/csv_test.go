package ld06

import (
	"bytes"
	"testing"
)

func TestEncodeCSVFormat(t *testing.T) {
	samples := []Sample{
		{Angle: 0, Distance: 1000, Confidence: 200},
		{Angle: 123.456, Distance: 42, Confidence: 101},
		{Angle: 359.99, Distance: 65535, Confidence: 255},
	}

	want := "0.00,1000,200\n123.46,42,101\n359.99,65535,255\n"
	got := string(EncodeCSV(samples))
	if got != want {
		t.Errorf("EncodeCSV = %q, want %q", got, want)
	}
}

func TestEncodeCSVEmpty(t *testing.T) {
	if out := EncodeCSV(nil); len(out) != 0 {
		t.Errorf("EncodeCSV(nil) = %q, want empty", out)
	}
}

func TestCSVWriterWritesBatches(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	if err := w.Write([]Sample{{Angle: 90, Distance: 500, Confidence: 150}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write([]Sample{{Angle: 180, Distance: 750, Confidence: 120}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := "90.00,500,150\n180.00,750,120\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
