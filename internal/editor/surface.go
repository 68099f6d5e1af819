package editor

import (
	"image"
	"image/color"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

// Surface is a drawing target in pixel space. Rectangles are given by
// center, size and clockwise angle in degrees.
type Surface interface {
	Size() geometry.Canvas
	Clear()
	DrawImage(img image.Image)
	StrokeRect(center geometry.Point, size geometry.Size, angle float64, c color.Color)
	DimOutside(center geometry.Point, size geometry.Size, angle float64)
}

// Resizable is a Surface that takes on the size of each presented bitmap.
type Resizable interface {
	Surface
	Resize(w, h float64)
}

// Style picks the outline colors.
type Style struct {
	Outline  color.Color
	Selected color.Color
}

// DefaultStyle is blue for pages and amber for the selection.
var DefaultStyle = Style{
	Outline:  color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
	Selected: color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
}

// Paint draws the bitmap and every page outline onto s. The selected page
// also dims everything outside it. Boxes scale to the surface, so the
// surface should keep the bitmap's aspect ratio.
func Paint(s Surface, bitmap image.Image, boxes []page.Box, selectedID string, style Style) {
	s.Clear()
	if bitmap != nil {
		s.DrawImage(bitmap)
	}

	px := s.Size()
	for _, b := range boxes {
		if b.ID == selectedID {
			center, size := toPixels(px, b)
			s.DimOutside(center, size, b.Angle)
		}
	}
	for _, b := range boxes {
		c := style.Outline
		if b.ID == selectedID {
			c = style.Selected
		}
		center, size := toPixels(px, b)
		s.StrokeRect(center, size, b.Angle, c)
	}
}

func toPixels(px geometry.Canvas, b page.Box) (geometry.Point, geometry.Size) {
	return geometry.Point{X: b.Center.X * px.Width, Y: b.Center.Y * px.Height},
		geometry.Size{Width: b.Size.Width * px.Width, Height: b.Size.Height * px.Height}
}
