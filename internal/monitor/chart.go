package monitor

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/arcline-data/lidard/internal/ld06"
)

// handleLatestScan renders a quick polar plot (HTML) of the most recent
// rotation using go-echarts. This is a debugging view; no auth. Query
// params:
//   - max_points (optional; default 8000) to reduce payload size
func (s *Server) handleLatestScan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.LatestRotation(r.Context())
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "no rotations recorded yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	samples, err := s.db.GetSamples(r.Context(), rec.ID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(samples) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "rotation has no samples")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(samples) > maxPoints {
		stride = int(math.Ceil(float64(len(samples)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(samples)/stride+1)
	maxAbs := 0.0
	for i := 0; i < len(samples); i += stride {
		p := samples[i]
		theta := p.Angle * math.Pi / 180.0
		x := float64(p.Distance) * math.Cos(theta)
		y := float64(p.Distance) * math.Sin(theta)
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, float64(p.Confidence)}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Latest Scan (Polar->XY)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Latest Rotation",
			Subtitle: fmt.Sprintf("rotation=%s points=%d stride=%d coverage=%.1f°", rec.ID, len(data), stride, rec.Coverage),
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
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
