package geometry

import "math"

// StepSize returns the smallest displayable increment for a decimal precision.
func StepSize(precision int) float64 {
	return math.Pow10(-precision)
}

// Direction returns the sign of target-current, or the sign of target when
// the two are equal.
func Direction(current, target float64) float64 {
	switch {
	case target > current:
		return 1
	case target < current:
		return -1
	case target > 0:
		return 1
	case target < 0:
		return -1
	}
	return 0
}

// MaxAngleReachable walks from current towards target in increments of step
// and returns the last angle whose bounds stay inside the unit square.
// Rotation against the box-in-square constraint has no closed-form inverse,
// so this is a bounded linear search; the result never passes target.
func MaxAngleReachable(canvas Canvas, center Point, size Size, current, target, step float64) float64 {
	dir := Direction(current, target)
	if dir == 0 || step <= 0 {
		return current
	}

	limit := int(math.Ceil(math.Abs(target-current) / step))
	best := current
	for k := 1; k <= limit; k++ {
		// Multiply instead of accumulating so long searches don't drift.
		candidate := current + dir*float64(k)*step
		if (dir > 0 && candidate > target) || (dir < 0 && candidate < target) {
			candidate = target
		}
		if !ComputeBounds(canvas, center, size, candidate).InUnitSquare() {
			break
		}
		best = candidate
	}
	return best
}
