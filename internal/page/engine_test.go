package page

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

const tol = 1e-9

var (
	square = geometry.Canvas{Width: 1000, Height: 1000}
	wide   = geometry.Canvas{Width: 1600, Height: 1200}
)

var boxOpts = cmp.Options{
	cmp.AllowUnexported(Box{}),
	cmpopts.EquateApprox(0, 1e-12),
	cmpopts.IgnoreFields(Box{}, "Edited"),
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= tol
}

func TestResizeWidthClampsAtRightEdge(t *testing.T) {
	b := New("p1", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.4, Height: 0.85}, 0)

	got, out := DefaultEngine.Resize(b, ExtentWidth, 0.9)
	if !out.Changed || !out.Clamped {
		t.Fatalf("Resize() outcome = %+v, want changed and clamped", out)
	}

	bounds := got.Bounds()
	if !near(bounds.Right, 1.0) {
		t.Errorf("right = %v, want 1.0", bounds.Right)
	}
	if !near(bounds.Left, 0.3) {
		t.Errorf("left = %v, want anchored at 0.3", bounds.Left)
	}
	if !near(got.Size.Width, 0.7) {
		t.Errorf("width = %v, want 0.7", got.Size.Width)
	}
	if !got.Edited {
		t.Error("edited flag not set")
	}
}

func TestResizeAxisAlignedAnchors(t *testing.T) {
	tests := []struct {
		name   string
		angle  float64
		ext    Extent
		fixed  func(geometry.Bounds) float64
		moving func(geometry.Bounds) float64
	}{
		{"width at 0 keeps left", 0, ExtentWidth, left, right},
		{"width at 180 keeps right", 180, ExtentWidth, right, left},
		{"width at -180 keeps right", -180, ExtentWidth, right, left},
		{"width at 90 keeps top", 90, ExtentWidth, top, bottom},
		{"width at -90 keeps bottom", -90, ExtentWidth, bottom, top},
		{"height at 0 keeps top", 0, ExtentHeight, top, bottom},
		{"height at 180 keeps bottom", 180, ExtentHeight, bottom, top},
		{"height at 90 keeps right", 90, ExtentHeight, right, left},
		{"height at -90 keeps left", -90, ExtentHeight, left, right},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.2, Height: 0.2}, tc.angle)
			got, out := DefaultEngine.Resize(b, tc.ext, 0.3)
			if !out.Changed {
				t.Fatal("Resize() did not change the box")
			}
			if !near(tc.fixed(got.Bounds()), tc.fixed(b.Bounds())) {
				t.Errorf("anchored edge moved: %v -> %v", tc.fixed(b.Bounds()), tc.fixed(got.Bounds()))
			}
			if !near(math.Abs(tc.moving(got.Bounds())-tc.moving(b.Bounds())), 0.1) {
				t.Errorf("moving edge travelled %v, want 0.1", tc.moving(got.Bounds())-tc.moving(b.Bounds()))
			}
		})
	}
}

func left(b geometry.Bounds) float64   { return b.Left }
func right(b geometry.Bounds) float64  { return b.Right }
func top(b geometry.Bounds) float64    { return b.Top }
func bottom(b geometry.Bounds) float64 { return b.Bottom }

func TestRotatedPathMatchesAxisAlignedPath(t *testing.T) {
	for _, cv := range []geometry.Canvas{square, wide} {
		for _, angle := range []float64{0, 90, -90, 180} {
			for _, ext := range []Extent{ExtentWidth, ExtentHeight} {
				for _, target := range []float64{0.05, 0.2, 0.35, 0.6, 2} {
					name := fmt.Sprintf("%vx%v/%v/%s/%v", cv.Width, cv.Height, angle, ext, target)
					t.Run(name, func(t *testing.T) {
						b := New("p", cv, geometry.Point{X: 0.4, Y: 0.55}, geometry.Size{Width: 0.25, Height: 0.3}, angle)

						direct, c1 := DefaultEngine.resizeAxisAligned(b, ext, target)
						rotated, c2 := DefaultEngine.resizeRotated(b, ext, target)
						direct.refresh()
						rotated.refresh()

						if diff := cmp.Diff(direct, rotated, boxOpts); diff != "" {
							t.Errorf("paths diverge (-axis +rotated):\n%s", diff)
						}
						if c1 != c2 {
							t.Errorf("clamped: axis path %v, rotated path %v", c1, c2)
						}
					})
				}
			}
		}
	}
}

func TestResizeRotatedQuadrantAnchors(t *testing.T) {
	tests := []struct {
		angle      float64
		keepX      func(geometry.Bounds) float64
		keepY      func(geometry.Bounds) float64
		growsRight bool
	}{
		{30, left, top, true},
		{-30, left, bottom, true},
		{150, right, top, false},
		{-150, right, bottom, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.angle), func(t *testing.T) {
			b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.2, Height: 0.1}, tc.angle)
			got, out := DefaultEngine.Resize(b, ExtentWidth, 0.3)
			if !out.Changed || out.Clamped {
				t.Fatalf("Resize() outcome = %+v, want unclamped change", out)
			}
			if !near(tc.keepX(got.Bounds()), tc.keepX(b.Bounds())) {
				t.Errorf("x anchor moved: %v -> %v", tc.keepX(b.Bounds()), tc.keepX(got.Bounds()))
			}
			if !near(tc.keepY(got.Bounds()), tc.keepY(b.Bounds())) {
				t.Errorf("y anchor moved: %v -> %v", tc.keepY(b.Bounds()), tc.keepY(got.Bounds()))
			}
			if grew := got.Bounds().Right-b.Bounds().Right > tol; grew != tc.growsRight {
				t.Errorf("right edge grew = %v, want %v", grew, tc.growsRight)
			}
		})
	}
}

func TestResizeRotatedClampsBothAxes(t *testing.T) {
	for _, cv := range []geometry.Canvas{square, wide} {
		for _, angle := range []float64{10, 30, 44, -20, 120, -100} {
			for _, ext := range []Extent{ExtentWidth, ExtentHeight} {
				b := New("p", cv, geometry.Point{X: 0.6, Y: 0.4}, geometry.Size{Width: 0.2, Height: 0.2}, angle)
				got, out := DefaultEngine.Resize(b, ext, 5)
				if !out.Clamped {
					t.Errorf("angle %v %s: expected clamp", angle, ext)
				}
				if !got.InBounds() {
					t.Errorf("angle %v %s: out of bounds %+v", angle, ext, got.Bounds())
				}
				gb := got.Bounds()
				touches := near(gb.Left, 0) || near(gb.Top, 0) || near(gb.Right, 1) || near(gb.Bottom, 1)
				if !touches {
					t.Errorf("angle %v %s: clamped box %+v does not touch the square", angle, ext, gb)
				}
			}
		}
	}
}

func TestResizeMinimumExtent(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.2, Height: 0.2}, 12)
	got, out := DefaultEngine.Resize(b, ExtentHeight, -3)
	if !out.Clamped {
		t.Error("negative extent should report a clamp")
	}
	if !near(got.Size.Height, 0.01) {
		t.Errorf("height = %v, want one step (0.01)", got.Size.Height)
	}
}

func TestMoveEdgeTranslatesAndClamps(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.4, Height: 0.3}, 0)

	got, out := DefaultEngine.MoveEdge(b, EdgeLeft, 0.1)
	if !out.Changed || out.Clamped {
		t.Fatalf("MoveEdge() outcome = %+v", out)
	}
	if !near(got.Bounds().Left, 0.1) || !near(got.Bounds().Width(), 0.4) {
		t.Errorf("bounds = %+v, want left 0.1 width 0.4", got.Bounds())
	}
	if got.Size != b.Size {
		t.Errorf("size changed: %+v", got.Size)
	}

	got, out = DefaultEngine.MoveEdge(b, EdgeTop, 0.9)
	if !out.Clamped {
		t.Error("top 0.9 should clamp")
	}
	if !near(got.Bounds().Bottom, 1) {
		t.Errorf("bottom = %v, want 1", got.Bounds().Bottom)
	}

	got, _ = DefaultEngine.MoveEdge(b, EdgeLeft, -2)
	if !near(got.Bounds().Left, 0) {
		t.Errorf("left = %v, want 0", got.Bounds().Left)
	}
}

func TestWithEdgeIdempotent(t *testing.T) {
	for _, angle := range []float64{0, 17, -33, 45} {
		b := New("p", wide, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.3, Height: 0.4}, angle)
		once := b.WithEdge(EdgeLeft, 0.22)
		twice := once.WithEdge(EdgeLeft, 0.22)
		if diff := cmp.Diff(once, twice, boxOpts); diff != "" {
			t.Errorf("angle %v: second WithEdge changed the box:\n%s", angle, diff)
		}
	}
}

func TestRotateSearchesMaxFeasibleAngle(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.7, Height: 0.75}, 30)
	if !b.InBounds() {
		t.Fatal("test setup: box at 30° must be in bounds")
	}
	if geometry.ComputeBounds(square, b.Center, b.Size, 45).InUnitSquare() {
		t.Fatal("test setup: 45° must be infeasible")
	}

	got, out := DefaultEngine.Rotate(b, 45)
	if !out.Clamped || out.Direction != 1 {
		t.Errorf("Rotate() outcome = %+v, want clamped with direction 1", out)
	}
	if got.Angle <= 30 || got.Angle >= 45 {
		t.Fatalf("angle = %v, want in (30, 45)", got.Angle)
	}
	if !got.InBounds() {
		t.Errorf("angle %v is out of bounds", got.Angle)
	}
	step := DefaultEngine.Step()
	if geometry.ComputeBounds(square, b.Center, b.Size, got.Angle+step).InUnitSquare() {
		t.Errorf("angle %v + step still feasible", got.Angle)
	}
	if got.Center != b.Center || got.Size != b.Size {
		t.Error("rotation must keep center and size")
	}
}

func TestRotateClampsToRange(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.1, Height: 0.1}, 0)

	got, out := DefaultEngine.Rotate(b, 60)
	if got.Angle != 45 || !out.Clamped {
		t.Errorf("Rotate(60) = %v (%+v), want 45 clamped", got.Angle, out)
	}

	got, out = DefaultEngine.Rotate(b, -90)
	if got.Angle != -45 || out.Direction != -1 {
		t.Errorf("Rotate(-90) = %v (%+v), want -45 direction -1", got.Angle, out)
	}

	got, out = DefaultEngine.Rotate(b, 0)
	if out.Changed || got.Edited {
		t.Error("rotating to the current angle should be a no-op")
	}
}

func TestApplyParseFailureReadsAsZero(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.4, Height: 0.3}, 0)

	got, _ := DefaultEngine.Apply(b, FieldLeft, ParseValue("abc"))
	if !near(got.Bounds().Left, 0) {
		t.Errorf("left = %v, want 0", got.Bounds().Left)
	}

	got, _ = DefaultEngine.Apply(b, FieldAngle, math.NaN())
	if got.Angle != 0 {
		t.Errorf("angle = %v, want 0", got.Angle)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"0.25", 0.25},
		{" 12.5 ", 12.5},
		{"-3", -3},
		{"", 0},
		{"abc", 0},
		{"Inf", 0},
		{"NaN", 0},
		{"1e400", 0},
	}
	for _, tc := range tests {
		if got := ParseValue(tc.raw); got != tc.want {
			t.Errorf("ParseValue(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

// Every edit on an in-bounds box must leave it in bounds, at and around
// each quadrant boundary.
func TestEditsNeverLeaveUnitSquare(t *testing.T) {
	var angles []float64
	for _, a := range []float64{0, 45, 90, 135, 180, -45, -90, -135, -180} {
		angles = append(angles, a, a+0.001, a-0.001, a+1, a-1)
	}
	values := []float64{-1, -0.001, 0, 0.001, 0.05, 0.3, 0.5, 0.999, 1, 1.001, 1.5, 44.99, 45, 45.01, 90, 1000}
	centers := []geometry.Point{{X: 0.5, Y: 0.5}, {X: 0.2, Y: 0.8}, {X: 0.85, Y: 0.15}}

	for _, cv := range []geometry.Canvas{square, wide, {Width: 900, Height: 1400}} {
		for _, c := range centers {
			for _, a := range angles {
				b := New("p", cv, c, geometry.Size{Width: 0.25, Height: 0.2}, a)
				if !b.InBounds() {
					continue
				}
				for _, f := range Fields {
					for _, v := range values {
						got, _ := DefaultEngine.Apply(b, f, v)
						if !got.InBounds() {
							t.Errorf("canvas %v center %v angle %v: %s=%v -> %+v", cv, c, a, f, v, got.Bounds())
						}
					}
				}
			}
		}
	}
}

func TestEditSequencesNeverLeaveUnitSquare(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		cv := geometry.Canvas{Width: 500 + rng.Float64()*1500, Height: 500 + rng.Float64()*1500}
		b := New("p", cv, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.2, Height: 0.2}, 0)
		for i := 0; i < 50; i++ {
			f := Fields[rng.Intn(len(Fields))]
			var v float64
			if f == FieldAngle {
				v = rng.Float64()*120 - 60
			} else {
				v = rng.Float64()*1.4 - 0.2
			}
			b, _ = DefaultEngine.Apply(b, f, v)
			if !b.InBounds() {
				t.Fatalf("run %d step %d: %s=%v left box out of bounds: %+v", run, i, f, v, b.Bounds())
			}
			if b.Size.Width <= 0 || b.Size.Height <= 0 {
				t.Fatalf("run %d step %d: non-positive size %+v", run, i, b.Size)
			}
		}
	}
}

func FuzzEngineApply(f *testing.F) {
	f.Add(0.0, 2, 0.9)
	f.Add(30.0, 4, 45.0)
	f.Add(-89.999, 3, 0.7)
	f.Add(135.0, 2, 1.2)
	f.Fuzz(func(t *testing.T, angle float64, field int, value float64) {
		if math.IsNaN(angle) || math.IsInf(angle, 0) || math.Abs(angle) > 1e6 {
			return
		}
		b := New("p", wide, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.1, Height: 0.1}, angle)
		if !b.InBounds() {
			return
		}
		f := Fields[((field%len(Fields))+len(Fields))%len(Fields)]
		got, _ := DefaultEngine.Apply(b, f, value)
		if !got.InBounds() {
			t.Fatalf("%s=%v at %v° left bounds: %+v", f, value, angle, got.Bounds())
		}
	})
}
