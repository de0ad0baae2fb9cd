package sink

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/monify-labs/telemon/pkg/models"
)

// Chart image size
const (
	ChartWidth  = 10 * vg.Inch
	ChartHeight = 8 * vg.Inch
)

type series struct {
	name  string
	label string
	color color.RGBA
}

var (
	usageSeries = []series{
		{models.MetricCPU, "CPU", color.RGBA{R: 31, G: 119, B: 180, A: 255}},
		{models.MetricMemory, "Memory", color.RGBA{R: 44, G: 160, B: 44, A: 255}},
		{models.MetricGPU, "GPU", color.RGBA{R: 214, G: 39, B: 40, A: 255}},
	}
	temperatureSeries = []series{
		{models.MetricCPUTemp, "CPU", color.RGBA{R: 255, G: 127, B: 14, A: 255}},
		{models.MetricGPUTemp, "GPU", color.RGBA{R: 148, G: 103, B: 189, A: 255}},
	}
)

// Chart redraws a usage and temperature image from the history every tick.
// The file is replaced atomically so readers never see a partial image.
type Chart struct {
	path string
}

// NewChart creates a chart sink writing to path
func NewChart(path string) *Chart {
	return &Chart{path: path}
}

// Path returns the image path
func (c *Chart) Path() string {
	return c.path
}

// Present renders frame.History to the chart file
func (c *Chart) Present(_ context.Context, frame *models.Frame) error {
	if frame == nil {
		return nil
	}

	usage, err := newPlot("CPU, Memory and GPU Usage Over Time", "Usage (%)", frame.History, usageSeries)
	if err != nil {
		return err
	}
	usage.Y.Min, usage.Y.Max = 0, 100

	temps, err := newPlot("CPU and GPU Temperature Over Time", "Temperature (°C)", frame.History, temperatureSeries)
	if err != nil {
		return err
	}

	return c.write([][]*plot.Plot{{usage}, {temps}})
}

func newPlot(title, yLabel string, hist map[string][]float64, set []series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range set {
		values := hist[s.name]
		if len(values) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = float64(i)
			pts[i].Y = v
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s series: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)

		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	return p, nil
}

// write draws the stacked plots to a temp file beside path, then renames it
func (c *Chart) write(plots [][]*plot.Plot) error {
	img := vgimg.New(ChartWidth, ChartHeight)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
		PadY:      vg.Millimeter * 6,
	}
	canvases := plot.Align(plots, tiles, dc)
	for row := range plots {
		plots[row][0].Draw(canvases[row][0])
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".telemon-chart-*.png")
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace chart: %w", err)
	}
	return nil
}

// Close is a no-op; the last image stays on disk
func (c *Chart) Close() error {
	return nil
}
