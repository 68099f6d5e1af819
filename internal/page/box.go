// Package page holds the oriented page box and the anchored edit engine that
// mutates it one scalar field at a time without letting the box leave the
// unit square.
package page

import (
	"slices"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// Side is the logical page of a two-page spread a box represents.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Box is an oriented page rectangle. Center, size and angle are the only
// stored geometry; the bounding box is derived and refreshed on every
// mutation so it can never go stale.
type Box struct {
	ID     string
	Center geometry.Point
	Size   geometry.Size
	Angle  float64
	Side   Side
	Edited bool
	Flags  []string

	canvas geometry.Canvas
	bounds geometry.Bounds
}

// New builds a box on the given canvas. The angle is stored as given, even
// outside the editor's rotation range.
func New(id string, canvas geometry.Canvas, center geometry.Point, size geometry.Size, angle float64) Box {
	b := Box{
		ID:     id,
		Center: center,
		Size:   size,
		Angle:  angle,
		Side:   SideFor(center),
		canvas: canvas,
	}
	b.refresh()
	return b
}

// FromDescriptor loads persisted geometry without touching any scalar.
func FromDescriptor(d document.PageDescriptor, canvas geometry.Canvas) Box {
	b := New(d.ID, canvas, geometry.Point{X: d.XC, Y: d.YC}, geometry.Size{Width: d.Width, Height: d.Height}, d.Angle)
	b.Flags = slices.Clone(d.Flags)
	return b
}

// SideFor picks the spread side from the horizontal center.
func SideFor(center geometry.Point) Side {
	if center.X > 0.5 {
		return SideRight
	}
	return SideLeft
}

// Descriptor exports the five stored scalars and the opaque flags.
func (b Box) Descriptor() document.PageDescriptor {
	return document.PageDescriptor{
		ID:     b.ID,
		XC:     b.Center.X,
		YC:     b.Center.Y,
		Width:  b.Size.Width,
		Height: b.Size.Height,
		Angle:  b.Angle,
		Flags:  slices.Clone(b.Flags),
	}
}

// Bounds returns the cached axis-aligned bounding box.
func (b Box) Bounds() geometry.Bounds {
	return b.bounds
}

// Canvas returns the reference canvas the box is normalized to.
func (b Box) Canvas() geometry.Canvas {
	return b.canvas
}

// InBounds reports whether the rotated box lies inside the unit square.
func (b Box) InBounds() bool {
	return b.bounds.InUnitSquare()
}

// Value reads the current value of an editable field.
func (b Box) Value(f Field) float64 {
	switch f {
	case FieldLeft:
		return b.bounds.Left
	case FieldTop:
		return b.bounds.Top
	case FieldWidth:
		return b.Size.Width
	case FieldHeight:
		return b.Size.Height
	case FieldAngle:
		return b.Angle
	}
	return 0
}

// WithAngle rotates the box using DefaultEngine.
func (b Box) WithAngle(angle float64) Box {
	nb, _ := DefaultEngine.Rotate(b, angle)
	return nb
}

// WithEdge moves the left or top edge using DefaultEngine.
func (b Box) WithEdge(edge Edge, offset float64) Box {
	nb, _ := DefaultEngine.MoveEdge(b, edge, offset)
	return nb
}

// WithExtent resizes width or height using DefaultEngine.
func (b Box) WithExtent(ext Extent, value float64) Box {
	nb, _ := DefaultEngine.Resize(b, ext, value)
	return nb
}

func (b *Box) refresh() {
	if !b.canvas.Valid() {
		b.canvas = geometry.Canvas{Width: 1, Height: 1}
	}
	b.bounds = geometry.ComputeBounds(b.canvas, b.Center, b.Size, b.Angle)
}
