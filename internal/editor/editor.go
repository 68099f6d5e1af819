package editor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

// PageStore loads and saves the page descriptors of a scan.
type PageStore interface {
	LoadPages(ctx context.Context, scanID string) ([]document.PageDescriptor, error)
	PersistPages(ctx context.Context, scanID string, pages []document.PageDescriptor) error
}

// ImageFetcher returns the bitmap of a scan.
type ImageFetcher interface {
	FetchImage(ctx context.Context, scanID string) (image.Image, error)
}

// Loaded is a fetched scan that has not been shown yet.
type Loaded struct {
	ScanID string
	Bitmap image.Image
	Pages  []document.PageDescriptor
}

// Options configures an Editor. Zero values fall back to defaults.
type Options struct {
	Engine page.Engine
	Style  Style
	NewID  func() string
	Logger *slog.Logger
}

// Editor is the session state for one operator: the active scan, its
// bitmap, its page collection and which scans still have unsaved edits.
// It is not safe for concurrent use; hosts call it from one goroutine.
type Editor struct {
	engine page.Engine
	style  Style
	newID  func() string
	log    *slog.Logger

	store   PageStore
	images  ImageFetcher
	surface Surface

	scanID   string
	bitmap   image.Image
	pages    *Collection
	unsynced map[string]bool
}

// New creates an editor. surface may be nil for headless use.
func New(store PageStore, images ImageFetcher, surface Surface, opts Options) *Editor {
	if opts.Engine == (page.Engine{}) {
		opts.Engine = page.DefaultEngine
	}
	if opts.Style == (Style{}) {
		opts.Style = DefaultStyle
	}
	if opts.NewID == nil {
		opts.NewID = typeid.NewPageID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Editor{
		engine:   opts.Engine,
		style:    opts.Style,
		newID:    opts.NewID,
		log:      opts.Logger,
		store:    store,
		images:   images,
		surface:  surface,
		pages:    NewCollection(geometry.Canvas{Width: 1, Height: 1}),
		unsynced: make(map[string]bool),
	}
}

// Engine returns the edit engine in use.
func (e *Editor) Engine() page.Engine {
	return e.engine
}

// ScanID returns the active scan, or "".
func (e *Editor) ScanID() string {
	return e.scanID
}

// Canvas returns the reference canvas of the active scan.
func (e *Editor) Canvas() geometry.Canvas {
	return e.pages.Canvas()
}

// Pages returns the boxes of the active scan.
func (e *Editor) Pages() []page.Box {
	return e.pages.Pages()
}

// Selected returns the selected box.
func (e *Editor) Selected() (page.Box, bool) {
	return e.pages.Selected()
}

// Collection exposes the page collection of the active scan.
func (e *Editor) Collection() *Collection {
	return e.pages
}

// Unsynced reports whether scanID has edits that were never persisted.
func (e *Editor) Unsynced(scanID string) bool {
	return e.unsynced[scanID]
}

// --- Loading ---

// PrepareImage fetches a scan's bitmap and pages without touching the current
// session. Callers may drop the result if the operator has moved on.
func (e *Editor) PrepareImage(ctx context.Context, scanID string) (*Loaded, error) {
	img, err := e.images.FetchImage(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	pages, err := e.store.LoadPages(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return &Loaded{ScanID: scanID, Bitmap: img, Pages: pages}, nil
}

// Present makes a prepared scan the active one and redraws. A Resizable
// surface is sized to the bitmap. On error nothing changes.
func (e *Editor) Present(l *Loaded) error {
	if l == nil || l.Bitmap == nil {
		return fmt.Errorf("present scan: no bitmap")
	}
	r := l.Bitmap.Bounds()
	canvas := geometry.Canvas{Width: float64(r.Dx()), Height: float64(r.Dy())}
	if !canvas.Valid() {
		return fmt.Errorf("present scan %q: empty bitmap", l.ScanID)
	}

	pages, err := LoadCollection(canvas, l.Pages)
	if err != nil {
		return fmt.Errorf("present scan %q: %w", l.ScanID, err)
	}

	e.scanID = l.ScanID
	e.bitmap = l.Bitmap
	e.pages = pages
	if rs, ok := e.surface.(Resizable); ok {
		rs.Resize(canvas.Width, canvas.Height)
	}
	e.Redraw()
	return nil
}

// Open is PrepareImage followed by Present.
func (e *Editor) Open(ctx context.Context, scanID string) error {
	l, err := e.PrepareImage(ctx, scanID)
	if err != nil {
		return err
	}
	return e.Present(l)
}

// --- Commands ---

// Select makes id the editable page.
func (e *Editor) Select(id string) error {
	if err := e.pages.Select(id); err != nil {
		return err
	}
	e.Redraw()
	return nil
}

// AddPage adds a default page and selects it.
func (e *Editor) AddPage() (page.Box, error) {
	b, err := e.pages.Add(e.newID())
	if err != nil {
		return page.Box{}, err
	}
	e.pages.selected = b.ID
	e.markDirty()
	e.Redraw()
	return b, nil
}

// RemovePage deletes a page.
func (e *Editor) RemovePage(id string) error {
	if err := e.pages.Remove(id); err != nil {
		return err
	}
	e.markDirty()
	e.Redraw()
	return nil
}

// Edit parses raw and applies it to field of the selected page. Text that
// does not parse is read as 0.
func (e *Editor) Edit(f page.Field, raw string) (page.Box, page.Outcome, error) {
	return e.EditValue(f, page.ParseValue(raw))
}

// EditValue applies value to field of the selected page.
func (e *Editor) EditValue(f page.Field, value float64) (page.Box, page.Outcome, error) {
	b, ok := e.pages.Selected()
	if !ok {
		return page.Box{}, page.Outcome{}, ErrNoSelection
	}

	nb, out := e.engine.Apply(b, f, value)
	if out.Clamped {
		e.log.Debug("edit clamped", "page", b.ID, "field", f, "value", value, "result", nb.Value(f))
	}
	if !out.Changed {
		return nb, out, nil
	}

	e.pages.replace(nb)
	e.pages.Touch(f, nb.ID)
	e.markDirty()
	e.Redraw()
	return nb, out, nil
}

// Step nudges field of the selected page by one display step in dir.
func (e *Editor) Step(f page.Field, dir int) (page.Box, page.Outcome, error) {
	b, ok := e.pages.Selected()
	if !ok {
		return page.Box{}, page.Outcome{}, ErrNoSelection
	}
	current := Round(b.Value(f), e.engine.Precision)
	return e.EditValue(f, current+float64(dir)*e.engine.Step())
}

// Redraw repaints the surface from current state.
func (e *Editor) Redraw() {
	if e.surface == nil {
		return
	}
	Paint(e.surface, e.bitmap, e.pages.boxes, e.pages.selected, e.style)
}

// Sync persists the active scan's pages. On failure the scan stays
// unsynced and the local state is kept.
func (e *Editor) Sync(ctx context.Context) error {
	if e.scanID == "" {
		return nil
	}
	if err := e.store.PersistPages(ctx, e.scanID, e.pages.Descriptors()); err != nil {
		e.log.Warn("sync failed", "scan", e.scanID, "error", err)
		return fmt.Errorf("persist pages: %w", err)
	}
	delete(e.unsynced, e.scanID)
	return nil
}

func (e *Editor) markDirty() {
	if e.scanID != "" {
		e.unsynced[e.scanID] = true
	}
}

// Round rounds v to precision decimals for display.
func Round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// Format renders v with precision decimals.
func Format(v float64, precision int) string {
	r := Round(v, precision)
	if r == 0 {
		r = 0 // no "-0.00"
	}
	return strconv.FormatFloat(r, 'f', precision, 64)
}
