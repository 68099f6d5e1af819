package page

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

func TestDescriptorRoundTripIsExact(t *testing.T) {
	in := document.PageDescriptor{
		ID:     "page_1",
		XC:     0.2712345678901234,
		YC:     0.4999999999999999,
		Width:  0.4000000000000001,
		Height: 0.85,
		Angle:  -1.2345678,
		Flags:  []string{"cover", "needs-review"},
	}

	out := FromDescriptor(in, wide).Descriptor()
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip changed the descriptor (-in +out):\n%s", diff)
	}
}

func TestDescriptorFlagsAreCopied(t *testing.T) {
	in := document.PageDescriptor{ID: "p", XC: 0.5, YC: 0.5, Width: 0.1, Height: 0.1, Flags: []string{"a"}}
	b := FromDescriptor(in, square)
	in.Flags[0] = "mutated"
	if b.Flags[0] != "a" {
		t.Error("box shares the flags slice with its descriptor")
	}
}

func TestBoundsRefreshOnEveryMutation(t *testing.T) {
	b := New("p", wide, geometry.Point{X: 0.5, Y: 0.5}, geometry.Size{Width: 0.3, Height: 0.3}, 0)

	edits := []func(Box) Box{
		func(b Box) Box { return b.WithAngle(20) },
		func(b Box) Box { return b.WithEdge(EdgeTop, 0.1) },
		func(b Box) Box { return b.WithExtent(ExtentHeight, 0.5) },
		func(b Box) Box { return b.WithExtent(ExtentWidth, 0.2) },
		func(b Box) Box { return b.WithEdge(EdgeLeft, 0.05) },
	}
	for i, edit := range edits {
		b = edit(b)
		want := geometry.ComputeBounds(wide, b.Center, b.Size, b.Angle)
		if b.Bounds() != want {
			t.Errorf("edit %d: cached bounds %+v, recomputed %+v", i, b.Bounds(), want)
		}
	}
}

func TestSideFor(t *testing.T) {
	if SideFor(geometry.Point{X: 0.25}) != SideLeft {
		t.Error("0.25 should be the left page")
	}
	if SideFor(geometry.Point{X: 0.75}) != SideRight {
		t.Error("0.75 should be the right page")
	}
}

func TestBoxValue(t *testing.T) {
	b := New("p", square, geometry.Point{X: 0.5, Y: 0.4}, geometry.Size{Width: 0.2, Height: 0.3}, 0)
	want := map[Field]float64{
		FieldLeft:   0.4,
		FieldTop:    0.25,
		FieldWidth:  0.2,
		FieldHeight: 0.3,
		FieldAngle:  0,
	}
	for f, v := range want {
		if !near(b.Value(f), v) {
			t.Errorf("Value(%s) = %v, want %v", f, b.Value(f), v)
		}
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField(" Width "); err != nil || f != FieldWidth {
		t.Errorf("ParseField(Width) = %q, %v", f, err)
	}
	if _, err := ParseField("depth"); err == nil {
		t.Error("ParseField(depth) should fail")
	}
}
