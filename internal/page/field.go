package page

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is one editable scalar of a page box.
type Field string

const (
	FieldLeft   Field = "left"
	FieldTop    Field = "top"
	FieldWidth  Field = "width"
	FieldHeight Field = "height"
	FieldAngle  Field = "angle"
)

// Fields lists every editable field in panel order.
var Fields = []Field{FieldLeft, FieldTop, FieldWidth, FieldHeight, FieldAngle}

// Edge is a movable edge of the bounding box.
type Edge string

const (
	EdgeLeft Edge = "left"
	EdgeTop  Edge = "top"
)

// Extent is a dimension measured along the box's own axes.
type Extent string

const (
	ExtentWidth  Extent = "width"
	ExtentHeight Extent = "height"
)

// ParseField validates a field name coming from the wire.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// ParseValue converts raw field input to a number. Anything that is not a
// finite number reads as 0; the edit engine clamps from there.
func ParseValue(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
