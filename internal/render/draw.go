package render

import (
	"image"
	"image/color"
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// pen fills anti-aliased vector shapes onto the workspace image.
type pen struct {
	img *image.RGBA
}

func (p pen) filler(clr color.Color) *rasterx.Filler {
	b := p.img.Bounds()
	f := rasterx.NewFiller(b.Dx(), b.Dy(), rasterx.NewScannerGV(b.Dx(), b.Dy(), p.img, b))
	f.SetColor(clr)
	return f
}

func (p pen) disc(center image.Point, radius int, clr color.Color) {
	f := p.filler(clr)
	rasterx.AddCircle(float64(center.X), float64(center.Y), float64(radius), f)
	f.Draw()
}

func (p pen) polygon(clr color.Color, pts ...vec) {
	if len(pts) < 3 {
		return
	}
	f := p.filler(clr)
	f.Start(pts[0].fixed())
	for _, pt := range pts[1:] {
		f.Line(pt.fixed())
	}
	f.Stop(true)
	f.Draw()
}

// arrow draws a shaft plus head from start to end; width scales with the cell size.
func (p pen) arrow(start, end image.Point, width float64, clr color.Color) {
	a, b := vecOf(start), vecOf(end)
	dir := b.sub(a)
	length := dir.len()
	if length == 0 {
		return
	}
	dir = dir.scale(1 / length)
	side := vec{-dir.y, dir.x}

	shaft := width * 0.18
	head := width * 0.25
	neck := b.sub(dir.scale(min(width*0.45, length*0.6)))

	p.polygon(clr,
		a.add(side.scale(shaft)), neck.add(side.scale(shaft)),
		neck.add(side.scale(head)), b,
		neck.sub(side.scale(head)), neck.sub(side.scale(shaft)),
		a.sub(side.scale(shaft)),
	)
}

func (p pen) centeredText(face font.Face, clr color.Color, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	d := &font.Drawer{Dst: p.img, Src: image.NewUniform(clr), Face: face}
	d.Dot = fixed.P(centerX-d.MeasureString(text).Round()/2, baseline)
	d.DrawString(text)
}

type vec struct{ x, y float64 }

func vecOf(pt image.Point) vec    { return vec{float64(pt.X), float64(pt.Y)} }
func (v vec) add(o vec) vec       { return vec{v.x + o.x, v.y + o.y} }
func (v vec) sub(o vec) vec       { return vec{v.x - o.x, v.y - o.y} }
func (v vec) scale(k float64) vec { return vec{v.x * k, v.y * k} }
func (v vec) len() float64        { return math.Hypot(v.x, v.y) }
func (v vec) fixed() fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(v.x * 64), Y: fixed.Int26_6(v.y * 64)}
}
