package editor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

// MaxPages is the size of a two-page spread.
const MaxPages = document.MaxPages

var (
	ErrCollectionFull = errors.New("scan already has two pages")
	ErrPageNotFound   = errors.New("page not found")
	ErrNoSelection    = errors.New("no page selected")
)

// Default page geometry for "add page".
var (
	defaultSize   = geometry.Size{Width: 0.4, Height: 0.85}
	defaultCenter = map[page.Side]geometry.Point{
		page.SideLeft:  {X: 0.25, Y: 0.5},
		page.SideRight: {X: 0.75, Y: 0.5},
	}
	singleCenter = geometry.Point{X: 0.5, Y: 0.5}
)

// Collection is the ordered set of page boxes on one scan. At most one box
// is selected; only the selected box is editable.
type Collection struct {
	canvas      geometry.Canvas
	boxes       []page.Box
	selected    string
	lastTouched map[page.Field]string
}

// NewCollection returns an empty collection on the given canvas.
func NewCollection(canvas geometry.Canvas) *Collection {
	return &Collection{
		canvas:      canvas,
		lastTouched: make(map[page.Field]string),
	}
}

// LoadCollection builds a collection from persisted descriptors.
func LoadCollection(canvas geometry.Canvas, pages []document.PageDescriptor) (*Collection, error) {
	if len(pages) > MaxPages {
		return nil, fmt.Errorf("load %d pages: %w", len(pages), ErrCollectionFull)
	}
	if err := document.ValidatePages(pages); err != nil {
		return nil, err
	}

	c := NewCollection(canvas)
	for _, d := range pages {
		c.boxes = append(c.boxes, page.FromDescriptor(d, canvas))
	}
	return c, nil
}

// Canvas returns the reference canvas.
func (c *Collection) Canvas() geometry.Canvas {
	return c.canvas
}

// Pages returns the boxes in order.
func (c *Collection) Pages() []page.Box {
	return slices.Clone(c.boxes)
}

// Len returns the number of boxes.
func (c *Collection) Len() int {
	return len(c.boxes)
}

// Get looks a box up by id.
func (c *Collection) Get(id string) (page.Box, bool) {
	i := c.index(id)
	if i < 0 {
		return page.Box{}, false
	}
	return c.boxes[i], true
}

// Select makes id the editable box.
func (c *Collection) Select(id string) error {
	if c.index(id) < 0 {
		return fmt.Errorf("select %q: %w", id, ErrPageNotFound)
	}
	c.selected = id
	return nil
}

// ClearSelection deselects every box.
func (c *Collection) ClearSelection() {
	c.selected = ""
}

// Selected returns the selected box.
func (c *Collection) Selected() (page.Box, bool) {
	if c.selected == "" {
		return page.Box{}, false
	}
	return c.Get(c.selected)
}

// SelectedID returns the selected id or "".
func (c *Collection) SelectedID() string {
	return c.selected
}

// Add inserts a default-sized box in the free slot of the spread and marks
// it edited. The first page is centered; a second page takes the side the
// first one leaves free.
func (c *Collection) Add(id string) (page.Box, error) {
	if len(c.boxes) >= MaxPages {
		return page.Box{}, ErrCollectionFull
	}
	if c.index(id) >= 0 {
		return page.Box{}, fmt.Errorf("add page %q: duplicate id", id)
	}

	center := singleCenter
	side := page.SideLeft
	if len(c.boxes) == 1 {
		if c.boxes[0].Side == page.SideLeft {
			side = page.SideRight
		}
		center = defaultCenter[side]
	}

	b := page.New(id, c.canvas, center, defaultSize, 0)
	b.Side = side
	b.Edited = true
	c.boxes = append(c.boxes, b)
	return b, nil
}

// Remove deletes a box; removing the selected box clears the selection.
func (c *Collection) Remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", id, ErrPageNotFound)
	}
	c.boxes = slices.Delete(c.boxes, i, i+1)
	if c.selected == id {
		c.selected = ""
	}
	for f, touched := range c.lastTouched {
		if touched == id {
			delete(c.lastTouched, f)
		}
	}
	return nil
}

// Touch records that field was last edited on box id.
func (c *Collection) Touch(f page.Field, id string) {
	c.lastTouched[f] = id
}

// LastTouched returns the id of the box field was last edited on.
func (c *Collection) LastTouched(f page.Field) string {
	return c.lastTouched[f]
}

// Descriptors exports every box for persistence.
func (c *Collection) Descriptors() []document.PageDescriptor {
	out := make([]document.PageDescriptor, len(c.boxes))
	for i, b := range c.boxes {
		out[i] = b.Descriptor()
	}
	return out
}

// Update swaps in an edited box with the same id.
func (c *Collection) Update(b page.Box) error {
	if c.index(b.ID) < 0 {
		return fmt.Errorf("update %q: %w", b.ID, ErrPageNotFound)
	}
	c.replace(b)
	return nil
}

// replace swaps in an edited box with the same id.
func (c *Collection) replace(b page.Box) {
	if i := c.index(b.ID); i >= 0 {
		c.boxes[i] = b
	}
}

func (c *Collection) index(id string) int {
	return slices.IndexFunc(c.boxes, func(b page.Box) bool { return b.ID == id })
}
