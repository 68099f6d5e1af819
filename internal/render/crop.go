package render

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

// CropPage cuts the rotated page out of src and returns it upright, at the
// source resolution. b must be normalized to src's dimensions.
func CropPage(src image.Image, b page.Box) *image.RGBA {
	sb := src.Bounds()
	canvas := geometry.Canvas{Width: float64(sb.Dx()), Height: float64(sb.Dy())}

	w := max(1, int(math.Round(b.Size.Width*canvas.Width)))
	h := max(1, int(math.Round(b.Size.Height*canvas.Height)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	// dst pixel -> page local -> canvas -> src pixel
	toSrc := geometry.Translate(float64(sb.Min.X), float64(sb.Min.Y)).
		Multiply(geometry.Placement(canvas, b.Center, b.Angle)).
		Multiply(geometry.Translate(-float64(w)/2, -float64(h)/2))

	xdraw.BiLinear.Transform(dst, toSrc.Invert().ToAff3(), src, sb, draw.Src, nil)
	return dst
}
