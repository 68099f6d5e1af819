package collab

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/scan"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

var errUnknownOperation = errors.New("unknown operation type")

// DocumentState holds the authoritative pages of a room.
type DocumentState struct {
	mu        sync.RWMutex
	scan      document.Scan
	pages     *editor.Collection
	engine    page.Engine
	serverSeq int64
	savedSeq  int64
}

// Result is what applying one operation did.
type Result struct {
	ServerSeq int64
	// Page is the affected page after the operation, nil after a removal.
	Page    *document.PageDescriptor
	Changed bool
	Clamped bool
}

// NewDocumentState builds room state from a loaded scan document.
func NewDocumentState(doc *document.ScanDocument, engine page.Engine) (*DocumentState, error) {
	canvas := doc.Scan.Canvas()
	if !canvas.Valid() {
		return nil, fmt.Errorf("scan %s has no size", doc.Scan.ID)
	}
	pages, err := editor.LoadCollection(canvas, doc.Pages)
	if err != nil {
		return nil, err
	}
	return &DocumentState{scan: doc.Scan, pages: pages, engine: engine}, nil
}

// Snapshot returns the current pages and the sequence number they are at.
func (ds *DocumentState) Snapshot() DocSyncPayload {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return DocSyncPayload{Scan: ds.scan, Pages: ds.pages.Descriptors(), ServerSeq: ds.serverSeq}
}

// Page returns one page's current descriptor.
func (ds *DocumentState) Page(id string) (*document.PageDescriptor, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	b, ok := ds.pages.Get(id)
	if !ok {
		return nil, false
	}
	d := b.Descriptor()
	return &d, true
}

// ApplyOperation applies op and bumps the server sequence when something
// changed. A failed operation leaves the state untouched.
func (ds *DocumentState) ApplyOperation(op Operation) (Result, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	res, err := ds.applyOperationLocked(op)
	if err != nil {
		return Result{}, err
	}
	if res.Changed {
		ds.serverSeq++
	}
	res.ServerSeq = ds.serverSeq
	return res, nil
}

func (ds *DocumentState) applyOperationLocked(op Operation) (Result, error) {
	switch op.Type {
	case TypePageEdit:
		return ds.applyEdit(op)
	case TypePageAdd:
		return ds.applyAdd(op)
	case TypePageRemove:
		return ds.applyRemove(op)
	default:
		return Result{}, fmt.Errorf("%w: %s", errUnknownOperation, op.Type)
	}
}

func (ds *DocumentState) applyEdit(op Operation) (Result, error) {
	f, err := page.ParseField(op.Field)
	if err != nil {
		return Result{}, err
	}
	b, ok := ds.pages.Get(op.PageID)
	if !ok {
		return Result{}, fmt.Errorf("edit %q: %w", op.PageID, editor.ErrPageNotFound)
	}

	nb, out := ds.engine.Apply(b, f, page.ParseValue(scan.RawValue(op.Value)))
	if out.Changed {
		if err := ds.pages.Update(nb); err != nil {
			return Result{}, err
		}
		ds.pages.Touch(f, nb.ID)
	}
	d := nb.Descriptor()
	return Result{Page: &d, Changed: out.Changed, Clamped: out.Clamped}, nil
}

func (ds *DocumentState) applyAdd(op Operation) (Result, error) {
	id := op.PageID
	if id == "" {
		id = typeid.NewPageID()
	} else if err := typeid.Validate(id, typeid.PrefixPage); err != nil {
		return Result{}, err
	}
	b, err := ds.pages.Add(id)
	if err != nil {
		return Result{}, err
	}
	d := b.Descriptor()
	return Result{Page: &d, Changed: true}, nil
}

func (ds *DocumentState) applyRemove(op Operation) (Result, error) {
	if err := ds.pages.Remove(op.PageID); err != nil {
		return Result{}, err
	}
	return Result{Changed: true}, nil
}

// Replace swaps in a page set that was already persisted elsewhere.
func (ds *DocumentState) Replace(pages []document.PageDescriptor) (int64, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	next, err := editor.LoadCollection(ds.pages.Canvas(), pages)
	if err != nil {
		return 0, err
	}
	ds.pages = next
	ds.serverSeq++
	ds.savedSeq = ds.serverSeq
	return ds.serverSeq, nil
}

// Dirty reports whether there are changes not yet saved.
func (ds *DocumentState) Dirty() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.serverSeq != ds.savedSeq
}

// MarkSaved records that the state at seq reached the store. Later
// changes keep the room dirty.
func (ds *DocumentState) MarkSaved(seq int64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if seq > ds.savedSeq {
		ds.savedSeq = seq
	}
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
