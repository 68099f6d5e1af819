package page

import (
	"math"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// quadrant maps an open rotation range onto the canvas corner an extent edit
// is anchored to. signX and signY are the signs of cos and sin of the box
// angle; base folds the angle into [0, 90] so |cos| and |sin| come from one
// place.
type quadrant struct {
	signX, signY float64
	base         func(angle float64) float64
}

type quadrantID int

const (
	quadrantI   quadrantID = iota // (0, 90)
	quadrantII                    // (90, 180)
	quadrantIII                   // (-180, -90)
	quadrantIV                    // (-90, 0)
)

var quadrantTable = [4]quadrant{
	quadrantI:   {1, 1, func(a float64) float64 { return a }},
	quadrantII:  {-1, 1, func(a float64) float64 { return 180 - a }},
	quadrantIII: {-1, -1, func(a float64) float64 { return a + 180 }},
	quadrantIV:  {1, -1, func(a float64) float64 { return -a }},
}

// classify picks the quadrant of an angle. Axis-aligned angles fall into a
// neighbouring quadrant whose signs still match cos and sin there, so the
// rotated path stays valid at 0, ±90 and 180.
func classify(angle float64) quadrant {
	a := normalizeAngle(angle)
	switch {
	case a >= 0 && a < 90:
		return quadrantTable[quadrantI]
	case a >= 90:
		return quadrantTable[quadrantII]
	case a < -90:
		return quadrantTable[quadrantIII]
	default:
		return quadrantTable[quadrantIV]
	}
}

// normalizeAngle folds any angle into (-180, 180].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	switch {
	case a > 180:
		a -= 360
	case a <= -180:
		a += 360
	}
	return a
}

func isAxisAligned(angle float64) bool {
	return math.Mod(angle, 90) == 0
}

// projection returns how far the moving bounding-box edges travel along the
// canvas X and Y axes, in normalized units, per unit of extent change.
// Extent units are width-normalized for width and height-normalized for
// height, so the cross-axis term carries the canvas aspect ratio.
func (q quadrant) projection(ext Extent, angle, aspect float64) (ax, ay float64) {
	sinB, cosB := geometry.SinCosDegrees(q.base(normalizeAngle(angle)))
	if ext == ExtentWidth {
		return q.signX * cosB, q.signY * sinB * aspect
	}
	return -q.signY * sinB / aspect, q.signX * cosB
}

// axisLimit is one canvas axis of the boundary correction.
type axisLimit struct {
	factor float64 // edge travel per unit extent change
	lo, hi float64 // current bounding-box edges on this axis
}

// limit caps a positive extent change so the moving edge stays in [0,1].
// The anchored edge is the one with the opposite sign of factor.
func (l axisLimit) limit(delta float64) (float64, bool) {
	if delta <= 0 || l.factor == 0 {
		return delta, false
	}
	var headroom float64
	if l.factor > 0 {
		headroom = max(0, 1-l.hi)
	} else {
		headroom = max(0, l.lo)
	}
	if delta*math.Abs(l.factor) <= headroom {
		return delta, false
	}
	return headroom / math.Abs(l.factor), true
}

// resizeRotated is the general extent edit. The local edge at the start of
// the edited axis stays put; the box grows towards the quadrant's corner and
// re-centers by half the travel. Growing along a rotated axis moves edges on
// both canvas axes, so the change is clamped against the dominant axis
// first and then against the perpendicular one. Both limits are linear in
// the change and only ever shrink it, so the second pass cannot undo the
// first.
func (e Engine) resizeRotated(b Box, ext Extent, target float64) (Box, bool) {
	q := classify(b.Angle)
	ax, ay := q.projection(ext, b.Angle, b.canvas.Aspect())

	bounds := b.Bounds()
	x := axisLimit{factor: ax, lo: bounds.Left, hi: bounds.Right}
	y := axisLimit{factor: ay, lo: bounds.Top, hi: bounds.Bottom}
	passes := [2]axisLimit{x, y}
	if ext == ExtentHeight {
		passes = [2]axisLimit{y, x}
	}

	delta := target - b.extent(ext)
	clamped := false
	for _, p := range passes {
		d, hit := p.limit(delta)
		delta = d
		clamped = clamped || hit
	}

	nb := b
	nb.setExtent(ext, b.extent(ext)+delta)
	nb.Center.X += delta * ax / 2
	nb.Center.Y += delta * ay / 2
	return nb, clamped
}

// axisEdit describes an extent edit at a multiple of 90°: which canvas axis
// the extent lies on, the extent-to-canvas scale on that axis, and whether
// the anchor is the trailing edge because the local axis is mirrored.
type axisEdit struct {
	vertical bool
	scale    float64
	reversed bool
}

func axisEditFor(ext Extent, angle, aspect float64) axisEdit {
	quarter := int(math.Round(normalizeAngle(angle) / 90))
	width := ext == ExtentWidth

	switch quarter {
	case 0:
		return axisEdit{vertical: !width, scale: 1}
	case 2, -2:
		return axisEdit{vertical: !width, scale: 1, reversed: true}
	case 1:
		if width {
			return axisEdit{vertical: true, scale: aspect}
		}
		return axisEdit{scale: 1 / aspect, reversed: true}
	default: // -1
		if width {
			return axisEdit{vertical: true, scale: aspect, reversed: true}
		}
		return axisEdit{scale: 1 / aspect}
	}
}

// resizeAxisAligned edits an unrotated (or quarter-turned) box directly on
// canvas axes: the leading edge is the anchor, or the trailing edge at 180°
// and at -90° for width / +90° for height.
func (e Engine) resizeAxisAligned(b Box, ext Extent, target float64) (Box, bool) {
	ae := axisEditFor(ext, b.Angle, b.canvas.Aspect())

	bounds := b.Bounds()
	lo, hi := bounds.Left, bounds.Right
	if ae.vertical {
		lo, hi = bounds.Top, bounds.Bottom
	}

	span := target * ae.scale
	var limit float64
	if ae.reversed {
		limit = max(0, hi)
	} else {
		limit = max(0, 1-lo)
	}

	current := b.extent(ext) * ae.scale
	clamped := false
	if span > current && span > limit {
		span = max(limit, current)
		clamped = true
	}

	center := lo + span/2
	if ae.reversed {
		center = hi - span/2
	}

	nb := b
	nb.setExtent(ext, span/ae.scale)
	if ae.vertical {
		nb.Center.Y = center
	} else {
		nb.Center.X = center
	}
	return nb, clamped
}
