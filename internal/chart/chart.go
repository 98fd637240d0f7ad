// Package chart renders an analysis as a publication-style bar chart.
//
// Bars show group means with standard-error whiskers. The annotation depends
// on the test: compact letters for Tukey, "*" above groups that differ from
// the control for Dunnett and a bracket with stars over each significant
// t-test pair.
package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roach88/labstat/internal/model"
)

// Defaults for ChartOptions fields left at zero.
const (
	DefaultWidth  = 6.0 // inches
	DefaultHeight = 4.5 // inches
	DefaultDPI    = 300
)

// headroom is the Y axis extent relative to the tallest bar.
const headroom = 1.2

// barSpan is the share of a nominal x slot filled by its bars.
const barSpan = 0.8

// Set2 is the qualitative colour palette used for groups.
var Set2 = []color.Color{
	color.RGBA{R: 0x66, G: 0xc2, B: 0xa5, A: 0xff},
	color.RGBA{R: 0xfc, G: 0x8d, B: 0x62, A: 0xff},
	color.RGBA{R: 0x8d, G: 0xa0, B: 0xcb, A: 0xff},
	color.RGBA{R: 0xe7, G: 0x8a, B: 0xc3, A: 0xff},
	color.RGBA{R: 0xa6, G: 0xd8, B: 0x54, A: 0xff},
	color.RGBA{R: 0xff, G: 0xd9, B: 0x2f, A: 0xff},
	color.RGBA{R: 0xe5, G: 0xc4, B: 0x94, A: 0xff},
	color.RGBA{R: 0xb3, G: 0xb3, B: 0xb3, A: 0xff},
}

// WithDefaults fills zero-valued size fields.
func WithDefaults(opts model.ChartOptions) model.ChartOptions {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	return opts
}

// slot is one bar: where it sits and what it shows.
type slot struct {
	x       float64
	summary model.GroupSummary
}

// layout positions every summary. Without a factor each group has its own
// nominal slot; with one, slots are factor levels and groups sit side by side.
func layout(a *model.Analysis) (ticks []string, byGroup map[string][]slot) {
	byGroup = make(map[string][]slot, len(a.Groups))
	if len(a.Factors) == 0 {
		for i, g := range a.Groups {
			for _, s := range a.Summaries {
				if s.Group == g {
					byGroup[g] = append(byGroup[g], slot{x: float64(i), summary: s})
				}
			}
		}
		return a.Groups, byGroup
	}

	w := barSpan / float64(len(a.Groups))
	for i, f := range a.Factors {
		for j, g := range a.Groups {
			if s, ok := a.Summary(f, g); ok {
				x := float64(i) - barSpan/2 + w*(float64(j)+0.5)
				byGroup[g] = append(byGroup[g], slot{x: x, summary: s})
			}
		}
	}
	return a.Factors, byGroup
}

// Render builds the plot for an analysis.
func Render(a *model.Analysis, opts model.ChartOptions) (*plot.Plot, error) {
	if len(a.Summaries) == 0 {
		return nil, fmt.Errorf("nothing to plot: analysis has no group summaries")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if opts.Subtitle != "" {
		p.Title.Text = strings.TrimSpace(opts.Title + "\n" + opts.Subtitle)
	}
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel

	ticks, byGroup := layout(a)
	width := 0.6
	if len(a.Factors) > 0 {
		width = barSpan / float64(len(a.Groups)) * 0.9
	}

	top, bottom := 0.0, 0.0
	var errPts errorPoints
	for gi, g := range a.Groups {
		slots := byGroup[g]
		if len(slots) == 0 {
			continue
		}
		b := &bars{width: width, color: Set2[gi%len(Set2)], line: outline()}
		for _, s := range slots {
			b.centers = append(b.centers, s.x)
			b.heights = append(b.heights, s.summary.Mean)
			se := s.summary.SE
			if math.IsNaN(se) {
				se = 0
			}
			errPts.XYs = append(errPts.XYs, plotter.XY{X: s.x, Y: s.summary.Mean})
			errPts.YErrors = append(errPts.YErrors, struct{ Low, High float64 }{se, se})
			top = math.Max(top, s.summary.Mean+se)
			bottom = math.Min(bottom, s.summary.Mean-se)
		}
		p.Add(b)
		if len(a.Factors) > 0 {
			p.Legend.Add(g, b)
		}
	}

	eb, err := plotter.NewYErrorBars(errPts)
	if err != nil {
		return nil, fmt.Errorf("error bars: %w", err)
	}
	eb.LineStyle = outline()
	eb.CapWidth = vg.Points(6)
	p.Add(eb)

	if top > 0 {
		p.Y.Max = top * headroom
	}
	p.Y.Min = bottom * headroom
	p.X.Min, p.X.Max = -0.5, float64(len(ticks))-0.5
	p.NominalX(ticks...)
	p.Legend.Top = true

	if err := annotate(p, a, byGroup, p.Y.Max-p.Y.Min); err != nil {
		return nil, err
	}
	return p, nil
}

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func outline() draw.LineStyle {
	ls := plotter.DefaultLineStyle
	ls.Color = color.Black
	ls.Width = vg.Points(0.75)
	return ls
}

// barTop is the y value above a bar's error whisker.
func barTop(s model.GroupSummary) float64 {
	se := s.SE
	if math.IsNaN(se) {
		se = 0
	}
	return math.Max(s.Mean+se, 0)
}

func annotate(p *plot.Plot, a *model.Analysis, byGroup map[string][]slot, span float64) error {
	gap := span * 0.02
	var marks plotter.XYLabels

	switch a.Request.Test {
	case model.TestTukey:
		for _, g := range a.Groups {
			for _, s := range byGroup[g] {
				if s.summary.Letters != "" {
					marks.XYs = append(marks.XYs, plotter.XY{X: s.x, Y: barTop(s.summary) + gap})
					marks.Labels = append(marks.Labels, s.summary.Letters)
				}
			}
		}
	case model.TestDunnett:
		for _, g := range a.Groups {
			for _, s := range byGroup[g] {
				if s.summary.Significance != "" {
					marks.XYs = append(marks.XYs, plotter.XY{X: s.x, Y: barTop(s.summary) + gap})
					marks.Labels = append(marks.Labels, s.summary.Significance)
				}
			}
		}
	case model.TestTTest:
		for _, c := range a.Comparisons {
			if !c.Reject {
				continue
			}
			l, r, ok := pairSlots(a, byGroup, c)
			if !ok {
				continue
			}
			y := math.Max(barTop(l.summary), barTop(r.summary)) + 2*gap
			line, err := plotter.NewLine(plotter.XYs{
				{X: l.x, Y: y - gap}, {X: l.x, Y: y}, {X: r.x, Y: y}, {X: r.x, Y: y - gap},
			})
			if err != nil {
				return fmt.Errorf("bracket: %w", err)
			}
			line.LineStyle = outline()
			p.Add(line)
			marks.XYs = append(marks.XYs, plotter.XY{X: (l.x + r.x) / 2, Y: y + gap/2})
			marks.Labels = append(marks.Labels, c.Stars)
		}
	}

	if len(marks.Labels) == 0 {
		return nil
	}
	labels, err := plotter.NewLabels(marks)
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YBottom
		labels.TextStyle[i].Font.Size = vg.Points(12)
	}
	p.Add(labels)
	return nil
}

// pairSlots finds the bars of a t-test comparison.
func pairSlots(a *model.Analysis, byGroup map[string][]slot, c model.Comparison) (slot, slot, bool) {
	find := func(g string) (slot, bool) {
		for _, s := range byGroup[g] {
			if len(a.Factors) == 0 || s.summary.Factor == c.Factor {
				return s, true
			}
		}
		return slot{}, false
	}
	l, ok1 := find(c.Group1)
	r, ok2 := find(c.Group2)
	return l, r, ok1 && ok2
}

// Save writes p to path in the format named by its extension. Raster
// formats honour opts.DPI.
func Save(p *plot.Plot, path string, opts model.ChartOptions) error {
	opts = WithDefaults(opts)
	w, h := vg.Length(opts.Width)*vg.Inch, vg.Length(opts.Height)*vg.Inch
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	switch ext {
	case "png", "jpg", "jpeg", "tif", "tiff":
		c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(opts.DPI))
		p.Draw(draw.New(c))

		f, err := os.Create(path)
		if err != nil {
			return err
		}
		var werr error
		switch ext {
		case "png":
			_, werr = vgimg.PngCanvas{Canvas: c}.WriteTo(f)
		case "jpg", "jpeg":
			_, werr = vgimg.JpegCanvas{Canvas: c}.WriteTo(f)
		default:
			_, werr = vgimg.TiffCanvas{Canvas: c}.WriteTo(f)
		}
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("write %s: %w", path, werr)
		}
		return nil
	case "svg", "pdf", "eps":
		if err := p.Save(w, h, path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("unsupported chart format %q (supported: %s)", ext, strings.Join(model.ChartFormats, ", "))
}

// Write renders an analysis and saves it to opts.Output.
func Write(a *model.Analysis, opts model.ChartOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("no chart output path")
	}
	p, err := Render(a, opts)
	if err != nil {
		return err
	}
	return Save(p, opts.Output, opts)
}
