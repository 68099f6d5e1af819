package render

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// DrawCommand is a single drawing operation for the browser to execute on
// a Canvas2D context, in painter's order.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "clear", "image", "stroke", "dim"
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // rectangle in local space
	Stroke      string        `json:"stroke,omitempty"`      // outline color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // pixels
	Fill        string        `json:"fill,omitempty"`        // dim overlay color
	Width       float64       `json:"width,omitempty"`       // surface or image width
	Height      float64       `json:"height,omitempty"`      // surface or image height
}

// PathCommand is one Canvas2D path segment: ["M", x, y], ["L", x, y], ["Z"].
type PathCommand []any

// Recorder is a Surface that records commands instead of drawing.
type Recorder struct {
	size      geometry.Canvas
	lineWidth float64
	dim       color.Color
	commands  []DrawCommand
}

// NewRecorder records for a w x h canvas.
func NewRecorder(w, h float64) *Recorder {
	return &Recorder{
		size:      geometry.Canvas{Width: w, Height: h},
		lineWidth: 2,
		dim:       DefaultDim,
	}
}

// Resize changes the canvas the host reports.
func (r *Recorder) Resize(w, h float64) {
	r.size = geometry.Canvas{Width: w, Height: h}
}

// Commands returns the recorded buffer.
func (r *Recorder) Commands() []DrawCommand {
	return r.commands
}

func (r *Recorder) Size() geometry.Canvas {
	return r.size
}

// Clear starts a new frame.
func (r *Recorder) Clear() {
	r.commands = append(r.commands[:0], DrawCommand{Op: "clear", Width: r.size.Width, Height: r.size.Height})
}

// DrawImage records the scan scaled to the canvas. The host holds the
// bitmap; only its natural size travels.
func (r *Recorder) DrawImage(img image.Image) {
	b := img.Bounds()
	sx := r.size.Width / float64(b.Dx())
	sy := r.size.Height / float64(b.Dy())
	r.commands = append(r.commands, DrawCommand{
		Op:        "image",
		Transform: []float64{sx, 0, 0, sy, 0, 0},
		Width:     float64(b.Dx()),
		Height:    float64(b.Dy()),
	})
}

func (r *Recorder) StrokeRect(center geometry.Point, size geometry.Size, angle float64, c color.Color) {
	r.commands = append(r.commands, DrawCommand{
		Op:          "stroke",
		Transform:   geometry.Placement(unit, center, angle).ToSlice(),
		Path:        localRect(size),
		Stroke:      hexColor(c),
		StrokeWidth: r.lineWidth,
	})
}

// DimOutside records an even-odd fill of the canvas minus the rectangle.
func (r *Recorder) DimOutside(center geometry.Point, size geometry.Size, angle float64) {
	r.commands = append(r.commands, DrawCommand{
		Op:        "dim",
		Transform: geometry.Placement(unit, center, angle).ToSlice(),
		Path:      localRect(size),
		Fill:      hexColor(r.dim),
		Width:     r.size.Width,
		Height:    r.size.Height,
	})
}

// JSON serializes the recorded buffer.
func (r *Recorder) JSON() (string, error) {
	data, err := json.Marshal(r.commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

func localRect(size geometry.Size) []PathCommand {
	hw, hh := size.Width/2, size.Height/2
	return []PathCommand{
		{"M", -hw, -hh},
		{"L", hw, -hh},
		{"L", hw, hh},
		{"L", -hw, hh},
		{"Z"},
	}
}

// hexColor formats c as #rrggbbaa, non-premultiplied.
func hexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}
