// Package geometry is the stateless kernel behind the page editor: it maps an
// oriented box (center, size, angle) in the normalized unit square onto its
// rotated corners and axis-aligned bounding box.
//
// All box coordinates are normalized to a reference image. Width and center X
// are fractions of the canvas width, height and center Y fractions of the
// canvas height. Rotation happens in pixel space so a non-square canvas does
// not shear the box.
package geometry

import "math"

// Epsilon is the tolerance used for every in-bounds test.
const Epsilon = 1e-9

// Canvas is the pixel size of the reference image the box is normalized to.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Aspect returns width / height.
func (c Canvas) Aspect() float64 {
	return c.Width / c.Height
}

// Valid reports whether both dimensions are positive.
func (c Canvas) Valid() bool {
	return c.Width > 0 && c.Height > 0
}

// Point is a position in normalized canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is measured along the box's own unrotated axes, normalized.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds is an axis-aligned bounding box in normalized canvas space.
type Bounds struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 {
	return b.Right - b.Left
}

// Height returns the vertical extent.
func (b Bounds) Height() float64 {
	return b.Bottom - b.Top
}

// InUnitSquare reports whether the bounds lie within [0,1]² up to Epsilon.
func (b Bounds) InUnitSquare() bool {
	return b.Left >= -Epsilon && b.Top >= -Epsilon &&
		b.Right <= 1+Epsilon && b.Bottom <= 1+Epsilon
}

// SinCosDegrees returns sin and cos of an angle in degrees. Multiples of 90
// return exact values so axis-aligned boxes have exact bounds.
func SinCosDegrees(degrees float64) (sin, cos float64) {
	if r := math.Mod(degrees, 90); r == 0 {
		switch q := int(math.Mod(degrees/90, 4)); q {
		case 0:
			return 0, 1
		case 1, -3:
			return 1, 0
		case 2, -2:
			return 0, -1
		case 3, -1:
			return -1, 0
		}
	}
	return math.Sincos(degrees * math.Pi / 180)
}

// PixelCorners returns the rotated corners in canvas pixels, ordered
// top-left, top-right, bottom-right, bottom-left in the box's local frame.
func PixelCorners(canvas Canvas, center Point, size Size, angle float64) [4]Point {
	m := Placement(canvas, center, angle)
	hw := size.Width * canvas.Width / 2
	hh := size.Height * canvas.Height / 2

	local := [4]Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var out [4]Point
	for i, p := range local {
		out[i].X, out[i].Y = m.TransformPoint(p.X, p.Y)
	}
	return out
}

// Corners returns the rotated corners renormalized to the unit square.
func Corners(canvas Canvas, center Point, size Size, angle float64) [4]Point {
	px := PixelCorners(canvas, center, size, angle)
	for i := range px {
		px[i].X /= canvas.Width
		px[i].Y /= canvas.Height
	}
	return px
}

// ComputeBounds returns the axis-aligned bounding box of the rotated
// rectangle. It is the single definition of what "in bounds" means.
func ComputeBounds(canvas Canvas, center Point, size Size, angle float64) Bounds {
	c := Corners(canvas, center, size, angle)

	return Bounds{
		Left:   min(c[0].X, c[1].X, c[2].X, c[3].X),
		Right:  max(c[0].X, c[1].X, c[2].X, c[3].X),
		Top:    min(c[0].Y, c[1].Y, c[2].Y, c[3].Y),
		Bottom: max(c[0].Y, c[1].Y, c[2].Y, c[3].Y),
	}
}
