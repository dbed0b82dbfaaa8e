// Package plot renders the diagnostic PNG charts of a detection run.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	imgdraw "image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// HistogramBins is the number of residual histogram bins.
const HistogramBins = 60

const (
	minWidth  = 200
	minHeight = 120
)

var (
	// ErrNoData is returned when there is nothing to plot.
	ErrNoData = errors.New("plot: no data")

	// ErrSize is returned for a non-positive or too small image size.
	ErrSize = errors.New("plot: image too small")
)

var (
	blue = color.RGBA{31, 119, 180, 255}
	red  = color.RGBA{214, 39, 40, 255}
	grey = color.RGBA{110, 110, 110, 255}
)

// Options controls chart size and labelling. Caption, if set, is stamped in
// the bottom-left corner of the image.
type Options struct {
	Width   int
	Height  int
	Title   string
	XLabel  string
	YLabel  string
	Caption string
}

// DefaultOptions returns a 1200x400 chart with no labels.
func DefaultOptions() Options {
	return Options{Width: 1200, Height: 400}
}

func (o Options) validate() error {
	if o.Width < minWidth || o.Height < minHeight {
		return fmt.Errorf("%w: %dx%d", ErrSize, o.Width, o.Height)
	}
	return nil
}

func (o Options) newPlot() *gonumplot.Plot {
	p := gonumplot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = o.XLabel
	p.Y.Label.Text = o.YLabel
	p.Add(plotter.NewGrid())
	return p
}

// TimeSeries plots values against row index and marks flagged rows in red.
// Non-finite values are left out of the line.
func TimeSeries(w io.Writer, values []float64, flags detectors.Flags, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if len(values) == 0 {
		return ErrNoData
	}
	if len(flags) != len(values) {
		return fmt.Errorf("plot: %d flags for %d values", len(flags), len(values))
	}

	var pts, marked plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pt := plotter.XY{X: float64(i), Y: v}
		pts = append(pts, pt)
		if flags[i] == 1 {
			marked = append(marked, pt)
		}
	}
	if len(pts) == 0 {
		return ErrNoData
	}

	p := opts.newPlot()
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	line.LineStyle.Color = blue
	line.LineStyle.Width = vg.Points(1)
	p.Add(line)

	if len(marked) > 0 {
		sc, err := plotter.NewScatter(marked)
		if err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		sc.GlyphStyle.Color = red
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
	}

	return render(w, p, opts)
}

// ResidualHistogram plots the residual distribution in HistogramBins bins
// with dashed lines at plus and minus threshold.
func ResidualHistogram(w io.Writer, residuals []float64, threshold float64, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if len(residuals) == 0 {
		return ErrNoData
	}

	lo, hi := extent(residuals)
	lo = math.Min(lo, -threshold)
	hi = math.Max(hi, threshold)
	counts := Histogram(residuals, HistogramBins, lo, hi)

	width := (hi - lo) / HistogramBins
	hist := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, HistogramBins),
		Width:     width,
		FillColor: blue,
		LineStyle: draw.LineStyle{Color: color.White, Width: vg.Points(0.5)},
	}
	peak := 0
	for i, n := range counts {
		left := lo + float64(i)*width
		hist.Bins[i] = plotter.HistogramBin{Min: left, Max: left + width, Weight: float64(n)}
		peak = max(peak, n)
	}

	p := opts.newPlot()
	p.Add(hist)
	for _, x := range []float64{-threshold, threshold} {
		l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: float64(peak)}})
		if err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		l.LineStyle.Color = red
		l.LineStyle.Width = vg.Points(3)
		l.LineStyle.Dashes = []vg.Length{vg.Points(8), vg.Points(4)}
		p.Add(l)
	}

	return render(w, p, opts)
}

// render draws p at one point per pixel, stamps the caption and encodes PNG.
func render(w io.Writer, p *gonumplot.Plot, opts Options) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(opts.Width), vg.Length(opts.Height)),
		vgimg.UseDPI(int(vg.Inch)),
		vgimg.UseBackgroundColor(color.White),
	)
	p.Draw(draw.New(c))

	img := c.Image()
	if opts.Caption != "" {
		stamp(img, opts.Caption)
	}
	return png.Encode(w, img)
}

func stamp(img imgdraw.Image, text string) {
	b := img.Bounds()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(grey),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X+4, b.Max.Y-4),
	}
	d.DrawString(text)
}

// Histogram counts values into equal-width bins over [lo, hi]. The
// upper edge belongs to the last bin. Non-finite values are ignored.
func Histogram(values []float64, bins int, lo, hi float64) []int {
	counts := make([]int, bins)
	if bins == 0 {
		return counts
	}
	span := hi - lo
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
			continue
		}
		i := 0
		if span > 0 {
			i = int((v - lo) / span * float64(bins))
		}
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	return counts
}

func extent(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
