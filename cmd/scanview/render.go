package main

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/arcline-data/lidard/internal/ld06"
	"github.com/arcline-data/lidard/internal/scandb"
)

// toXYs converts polar samples (angle in degrees, distance in mm) to
// cartesian plot points. 0° points along +X, angles run counterclockwise.
func toXYs(samples []scandb.StoredSample) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		theta := s.Angle * math.Pi / 180.0
		pts[i] = plotter.XY{
			X: float64(s.Distance) * math.Cos(theta),
			Y: float64(s.Distance) * math.Sin(theta),
		}
	}
	return pts
}

// confidenceColor maps a confidence value onto a blue-to-red ramp over
// the useful range (just above the filter threshold up to 255).
func confidenceColor(confidence uint8) color.Color {
	lo := float64(ld06.MIN_CONFIDENCE)
	t := (float64(confidence) - lo) / (255.0 - lo)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return color.RGBA{
		R: uint8(t * 255),
		B: uint8((1 - t) * 255),
		A: 255,
	}
}

// RenderPNG writes a square scatter plot of the rotation to path.
func RenderPNG(rec scandb.RotationRecord, samples []scandb.StoredSample, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rotation %s", rec.ID)
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	pts := toXYs(samples)
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  confidenceColor(samples[i].Confidence),
			Radius: vg.Points(1.5),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	// Symmetric axes keep the sensor at the visual center.
	maxAbs := 1.0
	for _, pt := range pts {
		if math.Abs(pt.X) > maxAbs {
			maxAbs = math.Abs(pt.X)
		}
		if math.Abs(pt.Y) > maxAbs {
			maxAbs = math.Abs(pt.Y)
		}
	}
	pad := maxAbs * 1.05
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RenderHTML writes an interactive ECharts scatter of the rotation to
// path, colored by confidence.
func RenderHTML(rec scandb.RotationRecord, samples []scandb.StoredSample, path string) error {
	data := make([]opts.ScatterData, 0, len(samples))
	maxAbs := 0.0
	for _, s := range samples {
		theta := s.Angle * math.Pi / 180.0
		x := float64(s.Distance) * math.Cos(theta)
		y := float64(s.Distance) * math.Sin(theta)
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, float64(s.Confidence)}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Rotation " + rec.ID.String(), Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Rotation " + rec.ID.String(),
			Subtitle: fmt.Sprintf("points=%d coverage=%.1f°", len(data), rec.Coverage),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (mm)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(ld06.MIN_CONFIDENCE),
			Max:        255,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("samples", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
