package verb_traj

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/rdk/spatialmath"
)

var plotColors = map[string]color.Color{
	ColorPlanned:  color.RGBA{R: 230, G: 200, B: 0, A: 255},
	ColorExecuted: color.RGBA{R: 220, G: 30, B: 30, A: 255},
}

type plotCurve struct {
	name   string
	color  string
	points plotter.XYs
}

// PlotVisualizer writes a top down view of every execution's gripper paths
// to <Dir>/<execution id>.png.
type PlotVisualizer struct {
	Dir string

	mu          sync.Mutex
	executionID string
	table       plotter.XYs
	curves      []plotCurve
}

func (p *PlotVisualizer) DrawTable(_ context.Context, table spatialmath.Geometry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// footprint of an axis aligned box; other shapes are not outlined
	box := table.ToProtobuf().GetBox()
	if box == nil {
		return nil
	}
	c := table.Pose().Point()
	dims := box.GetDimsMm()
	minX, maxX := c.X-dims.GetX()/2, c.X+dims.GetX()/2
	minY, maxY := c.Y-dims.GetY()/2, c.Y+dims.GetY()/2
	p.table = plotter.XYs{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
	}
	return nil
}

func (p *PlotVisualizer) DrawCurve(_ context.Context, name string, poses []spatialmath.Pose, color string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pts := make(plotter.XYs, 0, len(poses))
	for _, pose := range poses {
		pt := pose.Point()
		pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
	}
	p.curves = append(p.curves, plotCurve{name: name, color: color, points: pts})
	return p.save()
}

func (p *PlotVisualizer) ClearCurves(_ context.Context, executionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.executionID = executionID
	p.curves = nil
	return nil
}

func (p *PlotVisualizer) Close(context.Context) error { return nil }

// Path returns the file the current execution is written to.
func (p *PlotVisualizer) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path()
}

func (p *PlotVisualizer) path() string {
	id := p.executionID
	if id == "" {
		id = "trajectory"
	}
	return filepath.Join(p.Dir, id+".png")
}

func (p *PlotVisualizer) save() error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}

	pl := plot.New()
	pl.Title.Text = p.executionID
	pl.X.Label.Text = "x (mm)"
	pl.Y.Label.Text = "y (mm)"

	if len(p.table) > 0 {
		tableLine, err := plotter.NewLine(p.table)
		if err != nil {
			return err
		}
		tableLine.Width = vg.Points(1)
		tableLine.Color = color.Gray{Y: 120}
		pl.Add(tableLine)
		pl.Legend.Add("table", tableLine)
	}

	for _, c := range p.curves {
		if len(c.points) == 0 {
			continue
		}
		line, err := plotter.NewLine(c.points)
		if err != nil {
			return fmt.Errorf("failed to plot %s: %w", c.name, err)
		}
		line.Width = vg.Points(1)
		if col, ok := plotColors[c.color]; ok {
			line.Color = col
		}
		pl.Add(line)
		pl.Legend.Add(c.name, line)
	}

	pl.Legend.Top = true
	pl.Legend.Left = false

	return pl.Save(8*vg.Inch, 8*vg.Inch, p.path())
}
