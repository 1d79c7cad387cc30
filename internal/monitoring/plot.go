package monitoring

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ResidualSample is one iteration's worth of pose-graph solver progress,
// the unit the convergence plot renders.
type ResidualSample struct {
	Iteration int
	Residual  float64
}

// PlotConvergence renders a residual-vs-iteration line chart to path,
// grounded on internal/lidar/monitor/gridplotter.go's use of the same
// plot/plotter/vg trio for grid-cell time series.
func PlotConvergence(samples []ResidualSample, path string) error {
	p := plot.New()
	p.Title.Text = "pose graph solver convergence"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "residual norm"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = float64(s.Iteration)
		pts[i].Y = s.Residual
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building convergence line: %w", err)
	}
	p.Add(line)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// SliceSample is one cell of a 2D occupancy slice at a fixed Z, the unit
// the debug slice renderer plots (spec.md §6's "2D slice point cloud").
type SliceSample struct {
	X, Y     float64
	Distance float64
}

// PlotSlice renders a scatter of slice samples colored by sign of
// Distance (inside/outside the surface) to path.
func PlotSlice(samples []SliceSample, path string) error {
	p := plot.New()
	p.Title.Text = "TSDF slice"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	var inside, outside plotter.XYs
	for _, s := range samples {
		pt := struct{ X, Y float64 }{s.X, s.Y}
		if s.Distance <= 0 {
			inside = append(inside, plotter.XY(pt))
		} else {
			outside = append(outside, plotter.XY(pt))
		}
	}

	if len(inside) > 0 {
		sc, err := plotter.NewScatter(inside)
		if err != nil {
			return fmt.Errorf("building inside scatter: %w", err)
		}
		p.Add(sc)
	}
	if len(outside) > 0 {
		sc, err := plotter.NewScatter(outside)
		if err != nil {
			return fmt.Errorf("building outside scatter: %w", err)
		}
		p.Add(sc)
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
