package chart

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// bars draws one colour of bars whose centres and width are in data units,
// so that several groups can share a nominal x position.
type bars struct {
	centers []float64
	heights []float64
	width   float64
	color   color.Color
	line    draw.LineStyle
}

func (b *bars) rect(c draw.Canvas, plt *plot.Plot, x, h float64) []vg.Point {
	trX, trY := plt.Transforms(&c)
	x0, x1 := trX(x-b.width/2), trX(x+b.width/2)
	y0, y1 := trY(0), trY(h)
	return []vg.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}}
}

// Plot implements plot.Plotter.
func (b *bars) Plot(c draw.Canvas, plt *plot.Plot) {
	for i, x := range b.centers {
		h := b.heights[i]
		if math.IsNaN(h) {
			continue
		}
		pts := b.rect(c, plt, x, h)
		c.FillPolygon(b.color, c.ClipPolygonY(pts))
		c.StrokeLines(b.line, c.ClipLinesY(append(pts, pts[0]))...)
	}
}

// DataRange implements plot.DataRanger.
func (b *bars) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = math.Inf(1), math.Inf(-1)
	for i, x := range b.centers {
		if math.IsNaN(b.heights[i]) {
			continue
		}
		xmin = math.Min(xmin, x-b.width/2)
		xmax = math.Max(xmax, x+b.width/2)
		ymin = math.Min(ymin, b.heights[i])
		ymax = math.Max(ymax, b.heights[i])
	}
	return xmin, xmax, ymin, ymax
}

// Thumbnail implements plot.Thumbnailer for the legend.
func (b *bars) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(b.color, c.ClipPolygonY(pts))
	c.StrokeLines(b.line, c.ClipLinesY(append(pts, pts[0]))...)
}
