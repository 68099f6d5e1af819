package page

import (
	"math"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// Engine applies single-field edits to a box. Each edit picks an anchor that
// must not move, clamps at the unit square, and returns a fully consistent
// box or the original one untouched.
type Engine struct {
	// Precision is the number of decimals the UI displays. The rotation
	// search steps by 10^-Precision and that is also the minimum extent.
	Precision int
	// MaxRotation bounds the angle field to [-MaxRotation, MaxRotation].
	MaxRotation float64
}

// DefaultEngine matches the editor's stock field configuration.
var DefaultEngine = Engine{Precision: 2, MaxRotation: 45}

// Outcome describes what an edit did.
type Outcome struct {
	Changed bool
	Clamped bool
	// Direction is the sign of an angle change, 0 for other fields.
	Direction float64
}

// Step returns the smallest displayable increment.
func (e Engine) Step() float64 {
	return geometry.StepSize(e.Precision)
}

// Apply routes a field edit to the matching operation.
func (e Engine) Apply(b Box, f Field, value float64) (Box, Outcome) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}

	switch f {
	case FieldLeft:
		return e.MoveEdge(b, EdgeLeft, value)
	case FieldTop:
		return e.MoveEdge(b, EdgeTop, value)
	case FieldWidth:
		return e.Resize(b, ExtentWidth, value)
	case FieldHeight:
		return e.Resize(b, ExtentHeight, value)
	case FieldAngle:
		return e.Rotate(b, value)
	}
	return b, Outcome{}
}

// MoveEdge places the left or top edge of the bounding box at offset. The
// bounding box keeps its extent, so the opposite edge follows and the box
// translates; the offset is clamped to [0, 1-extent].
func (e Engine) MoveEdge(b Box, edge Edge, offset float64) (Box, Outcome) {
	bounds := b.Bounds()

	var lo, extent float64
	switch edge {
	case EdgeLeft:
		lo, extent = bounds.Left, bounds.Width()
	case EdgeTop:
		lo, extent = bounds.Top, bounds.Height()
	default:
		return b, Outcome{}
	}

	target := clamp(offset, 0, 1-extent)
	out := Outcome{Clamped: target != offset}

	delta := target - lo
	if delta == 0 {
		return b, out
	}

	nb := b
	if edge == EdgeLeft {
		nb.Center.X += delta
	} else {
		nb.Center.Y += delta
	}
	return e.commit(b, nb, out)
}

// Resize sets the width or height of the box. Which bounding-box edges stay
// fixed depends on the rotation; see resizeAxisAligned and resizeRotated.
func (e Engine) Resize(b Box, ext Extent, value float64) (Box, Outcome) {
	if ext != ExtentWidth && ext != ExtentHeight {
		return b, Outcome{}
	}

	target := max(value, e.Step())
	out := Outcome{Clamped: target != value}

	var nb Box
	var clamped bool
	if isAxisAligned(b.Angle) {
		nb, clamped = e.resizeAxisAligned(b, ext, target)
	} else {
		nb, clamped = e.resizeRotated(b, ext, target)
	}
	out.Clamped = out.Clamped || clamped

	if nb.extent(ext) == b.extent(ext) {
		return b, out
	}
	return e.commit(b, nb, out)
}

// Rotate sets the angle about the box center. The requested angle is
// clamped to the rotation range; if the box would leave the unit square the
// closest reachable angle in the requested direction is used instead.
func (e Engine) Rotate(b Box, angle float64) (Box, Outcome) {
	target := clamp(angle, -e.MaxRotation, e.MaxRotation)
	out := Outcome{
		Clamped:   target != angle,
		Direction: geometry.Direction(b.Angle, target),
	}
	if target == b.Angle {
		return b, out
	}

	if !geometry.ComputeBounds(b.canvas, b.Center, b.Size, target).InUnitSquare() {
		target = geometry.MaxAngleReachable(b.canvas, b.Center, b.Size, b.Angle, target, e.Step())
		out.Clamped = true
		if target == b.Angle {
			return b, out
		}
	}

	nb := b
	nb.Angle = target
	return e.commit(b, nb, out)
}

// commit refreshes the derived bounds and enforces atomicity: an edit never
// takes an in-bounds box out of bounds.
func (e Engine) commit(orig, nb Box, out Outcome) (Box, Outcome) {
	nb.refresh()
	if orig.InBounds() && !nb.InBounds() {
		out.Clamped = true
		return orig, out
	}
	nb.Edited = true
	out.Changed = true
	return nb, out
}

func (b Box) extent(ext Extent) float64 {
	if ext == ExtentWidth {
		return b.Size.Width
	}
	return b.Size.Height
}

func (b *Box) setExtent(ext Extent, v float64) {
	if ext == ExtentWidth {
		b.Size.Width = v
	} else {
		b.Size.Height = v
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return max(lo, min(hi, v))
}
