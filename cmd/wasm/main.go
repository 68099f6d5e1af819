//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"sync"
	"syscall/js"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/render"
)

const repeatInterval = 150 * time.Millisecond

// hostStore keeps what the host handed over and reports saves back to it
// through the onPersist callback.
type hostStore struct {
	pages     map[string][]document.PageDescriptor
	bitmaps   map[string]image.Image
	onPersist js.Value
}

func (s *hostStore) LoadPages(_ context.Context, scanID string) ([]document.PageDescriptor, error) {
	return s.pages[scanID], nil
}

func (s *hostStore) PersistPages(_ context.Context, scanID string, pages []document.PageDescriptor) error {
	if s.onPersist.Type() != js.TypeFunction {
		return fmt.Errorf("no persist callback registered")
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return err
	}
	if res := s.onPersist.Invoke(scanID, string(data)); res.Type() == js.TypeString {
		return fmt.Errorf("host: %s", res.String())
	}
	s.pages[scanID] = pages
	return nil
}

func (s *hostStore) FetchImage(_ context.Context, scanID string) (image.Image, error) {
	img, ok := s.bitmaps[scanID]
	if !ok {
		return nil, fmt.Errorf("scan %s not loaded", scanID)
	}
	return img, nil
}

var (
	mu       sync.Mutex
	store    = &hostStore{pages: map[string][]document.PageDescriptor{}, bitmaps: map[string]image.Image{}}
	recorder = render.NewRecorder(1, 1)
	ed       = editor.New(store, store, recorder, editor.Options{})
	stepper  = editor.NewStepper(repeatInterval)
	inputs   = map[page.Field]*editor.FieldInput{}
	onChange js.Value
)

func main() {
	for _, f := range page.Fields {
		inputs[f] = editor.NewFieldInput(ed, f)
	}
	go runStepper()

	pagecrop := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	pagecrop.Set("loadDocument", js.FuncOf(loadDocument))
	pagecrop.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	pagecrop.Set("resize", js.FuncOf(resize))
	pagecrop.Set("selectPage", js.FuncOf(selectPage))
	pagecrop.Set("addPage", js.FuncOf(addPage))
	pagecrop.Set("removePage", js.FuncOf(removePage))
	pagecrop.Set("edit", js.FuncOf(edit))
	pagecrop.Set("pressStep", js.FuncOf(pressStep))
	pagecrop.Set("releaseStep", js.FuncOf(releaseStep))
	pagecrop.Set("fieldFocus", js.FuncOf(fieldFocus))
	pagecrop.Set("fieldType", js.FuncOf(fieldType))
	pagecrop.Set("fieldKey", js.FuncOf(fieldKey))
	pagecrop.Set("fieldBlur", js.FuncOf(fieldBlur))
	pagecrop.Set("sync", js.FuncOf(syncPages))
	pagecrop.Set("onPersist", js.FuncOf(setOnPersist))
	pagecrop.Set("onChange", js.FuncOf(setOnChange))

	// --- Queries (frontend ← backend) ---
	pagecrop.Set("render", js.FuncOf(renderFrame))
	pagecrop.Set("getPages", js.FuncOf(getPages))
	pagecrop.Set("getSelection", js.FuncOf(getSelection))
	pagecrop.Set("fieldText", js.FuncOf(fieldText))
	pagecrop.Set("isUnsynced", js.FuncOf(isUnsynced))
	pagecrop.Set("cropPage", js.FuncOf(cropPage))

	js.Global().Set("pagecropEditor", pagecrop)
	js.Global().Set("pagecropWasmReady", js.ValueOf(true))

	select {}
}

func ok() any {
	return js.ValueOf(map[string]any{"ok": true})
}

func fail(err error) any {
	return js.ValueOf(map[string]any{"error": err.Error()})
}

func field(args []js.Value, i int) (page.Field, error) {
	if len(args) <= i {
		return "", fmt.Errorf("missing field")
	}
	return page.ParseField(args[i].String())
}

// changed tells the host to redraw and refresh its field texts.
func changed() {
	mu.Lock()
	for _, in := range inputs {
		in.Reset()
	}
	mu.Unlock()
	if onChange.Type() == js.TypeFunction {
		onChange.Invoke()
	}
}

func runStepper() {
	for ev := range stepper.Events() {
		// queued before a release
		if !stepper.Held() {
			continue
		}
		mu.Lock()
		_, _, err := ed.Step(ev.Field, ev.Dir)
		mu.Unlock()
		if err != nil {
			stepper.Release()
			continue
		}
		changed()
	}
}

// --- Command Handlers ---

// loadDocument(documentJSON, imageBytes) opens a scan document with its
// image.
func loadDocument(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return fail(fmt.Errorf("missing document JSON or image bytes"))
	}
	doc, err := document.Parse([]byte(args[0].String()))
	if err != nil {
		return fail(err)
	}
	data := make([]byte, args[1].Get("length").Int())
	js.CopyBytesToGo(data, args[1])
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fail(fmt.Errorf("decode image: %w", err))
	}

	mu.Lock()
	defer mu.Unlock()
	return present(&editor.Loaded{ScanID: doc.Scan.ID, Bitmap: img, Pages: doc.Pages})
}

// present shows l and records it in the host store. A rejected scan leaves
// the store, the editor and the surface as they were.
func present(l *editor.Loaded) any {
	if err := ed.Present(l); err != nil {
		return fail(err)
	}
	store.bitmaps[l.ScanID] = l.Bitmap
	store.pages[l.ScanID] = l.Pages
	return ok()
}

// loadSampleDocument opens the sample spread over a blank page image.
func loadSampleDocument(this js.Value, args []js.Value) any {
	scanID := "scan_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		scanID = args[0].String()
	}
	doc := document.NewSampleDocument(scanID)
	img := image.NewGray(image.Rect(0, 0, doc.Scan.Width, doc.Scan.Height))
	for i := range img.Pix {
		img.Pix[i] = 0xf0
	}

	mu.Lock()
	defer mu.Unlock()
	return present(&editor.Loaded{ScanID: scanID, Bitmap: img, Pages: doc.Pages})
}

// resize(width) fits the drawing surface to the host canvas width. The
// height follows the scan's aspect ratio.
func resize(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	w := args[0].Float()
	if c := ed.Canvas(); c.Valid() && w > 0 {
		recorder.Resize(w, w/c.Aspect())
		ed.Redraw()
	}
	return js.ValueOf(map[string]any{"width": recorder.Size().Width, "height": recorder.Size().Height})
}

func selectPage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return fail(fmt.Errorf("missing page id"))
	}
	mu.Lock()
	err := ed.Select(args[0].String())
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	changed()
	return ok()
}

func addPage(this js.Value, args []js.Value) any {
	mu.Lock()
	b, err := ed.AddPage()
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	changed()
	return js.ValueOf(b.ID)
}

func removePage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return fail(fmt.Errorf("missing page id"))
	}
	mu.Lock()
	err := ed.RemovePage(args[0].String())
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	changed()
	return ok()
}

// edit(field, rawText) applies a value to the selected page.
func edit(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil {
		return fail(err)
	}
	raw := ""
	if len(args) > 1 {
		raw = args[1].String()
	}
	mu.Lock()
	b, out, err := ed.Edit(f, raw)
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	changed()
	return js.ValueOf(map[string]any{
		"value":   editor.Format(b.Value(f), ed.Engine().Precision),
		"changed": out.Changed,
		"clamped": out.Clamped,
	})
}

// pressStep(field, dir) starts auto-repeat stepping until releaseStep.
func pressStep(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil || len(args) < 2 {
		return nil
	}
	dir := 1
	if args[1].Int() < 0 {
		dir = -1
	}
	stepper.Press(f, dir)
	return nil
}

func releaseStep(this js.Value, args []js.Value) any {
	stepper.Release()
	return nil
}

func fieldFocus(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil {
		return fail(err)
	}
	mu.Lock()
	defer mu.Unlock()
	inputs[f].Focus()
	return js.ValueOf(inputs[f].SelectAll())
}

func fieldType(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil || len(args) < 2 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	inputs[f].Type(args[1].String())
	return js.ValueOf(inputs[f].Text())
}

// fieldKey(field, key) reports whether the key was consumed.
func fieldKey(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil || len(args) < 2 {
		return js.ValueOf(false)
	}
	mu.Lock()
	var consumed bool
	if args[1].String() == "Backspace" {
		inputs[f].Backspace()
		consumed = true
	} else {
		consumed, err = inputs[f].Key(args[1].String())
	}
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	if consumed {
		changed()
	}
	return js.ValueOf(consumed)
}

func fieldBlur(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil {
		return fail(err)
	}
	mu.Lock()
	err = inputs[f].Blur()
	mu.Unlock()
	if err != nil {
		return fail(err)
	}
	changed()
	return ok()
}

func syncPages(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	if err := ed.Sync(context.Background()); err != nil {
		return fail(err)
	}
	return ok()
}

func setOnPersist(this js.Value, args []js.Value) any {
	if len(args) > 0 {
		mu.Lock()
		store.onPersist = args[0]
		mu.Unlock()
	}
	return nil
}

func setOnChange(this js.Value, args []js.Value) any {
	if len(args) > 0 {
		onChange = args[0]
	}
	return nil
}

// --- Query Handlers ---

func renderFrame(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	out, err := recorder.JSON()
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(out)
}

func getPages(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	data, err := json.Marshal(ed.Collection().Descriptors())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getSelection(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(ed.Collection().SelectedID())
}

func fieldText(this js.Value, args []js.Value) any {
	f, err := field(args, 0)
	if err != nil {
		return js.ValueOf("")
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(inputs[f].Text())
}

func isUnsynced(this js.Value, args []js.Value) any {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(ed.Unsynced(ed.ScanID()))
}

// cropPage(pageId) returns the upright page as PNG bytes.
func cropPage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.Null()
	}
	mu.Lock()
	b, found := ed.Collection().Get(args[0].String())
	img, err := store.FetchImage(context.Background(), ed.ScanID())
	mu.Unlock()
	if !found || err != nil {
		return js.Null()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, render.CropPage(img, b)); err != nil {
		return js.Null()
	}
	out := js.Global().Get("Uint8Array").New(buf.Len())
	js.CopyBytesToJS(out, buf.Bytes())
	return out
}
