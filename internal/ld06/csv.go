package ld06

import (
	"bytes"
	"fmt"
	"io"
)

// AppendCSV appends one "angle,distance,confidence" line per sample to
// buf and returns the extended slice. The format matches the sensor
// vendor's reference output: angle to two decimal places, distance in
// millimeters, confidence 0-255.
func AppendCSV(buf []byte, samples []Sample) []byte {
	for _, s := range samples {
		buf = fmt.Appendf(buf, "%.2f,%d,%d\n", s.Angle, s.Distance, s.Confidence)
	}
	return buf
}

// EncodeCSV renders a sample batch as CSV lines in a fresh buffer.
func EncodeCSV(samples []Sample) []byte {
	return AppendCSV(nil, samples)
}

// CSVWriter emits decoded samples as CSV lines to an underlying writer,
// reusing one scratch buffer across writes so the hot path does not
// allocate per batch.
type CSVWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

// NewCSVWriter creates a CSVWriter emitting to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// Write emits one line per sample.
func (c *CSVWriter) Write(samples []Sample) error {
	c.buf.Reset()
	for _, s := range samples {
		fmt.Fprintf(&c.buf, "%.2f,%d,%d\n", s.Angle, s.Distance, s.Confidence)
	}
	_, err := c.w.Write(c.buf.Bytes())
	return err
}
