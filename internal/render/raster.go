// Package render draws page boxes over a scan, either into an in-memory
// bitmap or into a command list a browser canvas replays.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// unit maps pixel-space centers and sizes through the geometry helpers.
var unit = geometry.Canvas{Width: 1, Height: 1}

// DefaultDim is the overlay outside the selected page.
var DefaultDim = color.NRGBA{A: 0x80}

// Raster is a Surface backed by an RGBA bitmap.
type Raster struct {
	img       *image.RGBA
	lineWidth float64
	dim       color.Color
}

// NewRaster allocates a w x h surface.
func NewRaster(w, h int) *Raster {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return &Raster{
		img:       img,
		lineWidth: 2,
		dim:       DefaultDim,
	}
}

// NewRasterFor sizes a surface to src, scaled down so the longer side is
// at most maxSide. The aspect ratio is kept.
func NewRasterFor(src image.Image, maxSide int) *Raster {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if maxSide > 0 && max(w, h) > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}
	return NewRaster(w, h)
}

// SetLineWidth sets the outline width in pixels.
func (r *Raster) SetLineWidth(w float64) {
	r.lineWidth = w
}

// SetDim sets the overlay color outside the selected page.
func (r *Raster) SetDim(c color.Color) {
	r.dim = c
}

// Image returns the backing bitmap.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

func (r *Raster) Size() geometry.Canvas {
	b := r.img.Bounds()
	return geometry.Canvas{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.White, image.Point{}, draw.Src)
}

// DrawImage scales src to fill the surface.
func (r *Raster) DrawImage(src image.Image) {
	xdraw.CatmullRom.Scale(r.img, r.img.Bounds(), src, src.Bounds(), draw.Over, nil)
}

func (r *Raster) StrokeRect(center geometry.Point, size geometry.Size, angle float64, c color.Color) {
	w, h := r.img.Bounds().Dx(), r.img.Bounds().Dy()
	d := rasterx.NewDasher(w, h, r.scanner())
	d.SetStroke(fixed.Int26_6(r.lineWidth*64), 4<<6, rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.MiterClip, nil, 0)
	d.SetColor(c)
	addRect(d, center, size, angle)
	d.Draw()
}

// DimOutside covers everything but the rotated rectangle. The rectangle is
// wound against the full-surface path so the non-zero rule leaves it empty.
func (r *Raster) DimOutside(center geometry.Point, size geometry.Size, angle float64) {
	w, h := r.img.Bounds().Dx(), r.img.Bounds().Dy()
	f := rasterx.NewFiller(w, h, r.scanner())
	f.SetColor(r.dim)

	f.Start(rasterx.ToFixedP(0, 0))
	f.Line(rasterx.ToFixedP(float64(w), 0))
	f.Line(rasterx.ToFixedP(float64(w), float64(h)))
	f.Line(rasterx.ToFixedP(0, float64(h)))
	f.Stop(true)
	addHole(f, center, size, angle)
	f.Draw()
}

// scanner returns a fresh scanner so no path carries over between shapes.
func (r *Raster) scanner() *rasterx.ScannerGV {
	b := r.img.Bounds()
	return rasterx.NewScannerGV(b.Dx(), b.Dy(), r.img, b)
}

// EncodePNG writes the surface as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}

type pather interface {
	Start(a fixed.Point26_6)
	Line(b fixed.Point26_6)
	Stop(closeLoop bool)
}

func addRect(p pather, center geometry.Point, size geometry.Size, angle float64) {
	c := geometry.PixelCorners(unit, center, size, angle)
	p.Start(rasterx.ToFixedP(c[0].X, c[0].Y))
	for _, pt := range c[1:] {
		p.Line(rasterx.ToFixedP(pt.X, pt.Y))
	}
	p.Stop(true)
}

// addHole traces the rectangle in the opposite direction to addRect.
func addHole(p pather, center geometry.Point, size geometry.Size, angle float64) {
	c := geometry.PixelCorners(unit, center, size, angle)
	p.Start(rasterx.ToFixedP(c[3].X, c[3].Y))
	for i := 2; i >= 0; i-- {
		p.Line(rasterx.ToFixedP(c[i].X, c[i].Y))
	}
	p.Stop(true)
}
