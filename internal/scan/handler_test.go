package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/pagecrop/pagecrop/backend-go/internal/auth"
	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

type memStore struct {
	mu        sync.Mutex
	scans     map[string]document.Scan
	pages     map[string][]document.PageDescriptor
	createErr error
}

func newMemStore() *memStore {
	return &memStore{scans: map[string]document.Scan{}, pages: map[string][]document.PageDescriptor{}}
}

func (m *memStore) Create(_ context.Context, _, scanID, name string, width, height int, file string) (*document.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	sc := document.Scan{ID: scanID, Name: name, Width: width, Height: height, File: file, Synced: true}
	m.scans[scanID] = sc
	return &sc, nil
}

func (m *memStore) Get(_ context.Context, scanID string) (*document.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scans[scanID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sc, nil
}

func (m *memStore) List(context.Context) ([]document.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Scan
	for _, sc := range m.scans {
		out = append(out, sc)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, scanID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scans, scanID)
	return nil
}

func (m *memStore) LoadPages(_ context.Context, scanID string) ([]document.PageDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[scanID]; !ok {
		return nil, ErrNotFound
	}
	return m.pages[scanID], nil
}

func (m *memStore) PersistPages(_ context.Context, scanID string, pages []document.PageDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[scanID] = pages
	return nil
}

type recordingNotifier struct {
	scans []string
}

func (n *recordingNotifier) PagesChanged(scanID string, _ []document.PageDescriptor) {
	n.scans = append(n.scans, scanID)
}

type fixture struct {
	store    *memStore
	files    *FileFetcher
	notifier *recordingNotifier
	router   *mux.Router
	scanID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		files:    NewFileFetcher(t.TempDir()),
		notifier: &recordingNotifier{},
		scanID:   typeid.NewScanID(),
	}

	// 300x200: red left half, blue right half
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, image.Rect(0, 0, 150, 200), &image.Uniform{C: color.RGBA{R: 0xff, A: 0xff}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(150, 0, 300, 200), &image.Uniform{C: color.RGBA{B: 0xff, A: 0xff}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if _, err := f.files.Store(f.scanID, &buf); err != nil {
		t.Fatal(err)
	}
	f.store.scans[f.scanID] = document.Scan{ID: f.scanID, Name: "spread", Width: 300, Height: 200}
	f.store.pages[f.scanID] = []document.PageDescriptor{
		{ID: "left", XC: 0.25, YC: 0.5, Width: 0.4, Height: 0.8},
		{ID: "right", XC: 0.75, YC: 0.5, Width: 0.4, Height: 0.8},
	}

	h := NewHandler(f.store, f.files, page.DefaultEngine, "http://scans.example/")
	h.SetNotifier(f.notifier)

	r := mux.NewRouter()
	r.HandleFunc("/api/scans", h.List).Methods("GET")
	r.HandleFunc("/api/scans", h.Upload).Methods("POST")
	r.HandleFunc("/api/scans/{scanId}", h.Get).Methods("GET")
	r.HandleFunc("/api/scans/{scanId}/pages", h.GetPages).Methods("GET")
	r.HandleFunc("/api/scans/{scanId}/pages", h.PutPages).Methods("PUT")
	r.HandleFunc("/api/scans/{scanId}/pages/{pageId}/edit", h.Edit).Methods("POST")
	r.HandleFunc("/api/scans/{scanId}/pages/{pageId}/crop.png", h.Crop).Methods("GET")
	r.HandleFunc("/api/scans/{scanId}/preview.png", h.Preview).Methods("GET")
	r.HandleFunc("/api/scans/{scanId}/qr.png", h.QR).Methods("GET")
	r.PathPrefix("/scans/files/").Handler(h.Serve()).Methods("GET")
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "user_test"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestEditEndpointClampsAndPersists(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/scans/"+f.scanID+"/pages/right/edit", `{"field":"width","value":"0.6"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp editResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Changed || !resp.Clamped {
		t.Errorf("response = %+v, want changed and clamped", resp)
	}
	if math.Abs(resp.Page.Width-0.45) > 1e-9 {
		t.Errorf("width = %v, want 0.45 (right edge at 1)", resp.Page.Width)
	}
	if got := f.store.pages[f.scanID][1].Width; got != resp.Page.Width {
		t.Errorf("persisted width = %v, want %v", got, resp.Page.Width)
	}
	if len(f.notifier.scans) != 1 {
		t.Errorf("notifier called %d times, want 1", len(f.notifier.scans))
	}
}

func TestEditEndpointNumericAndGarbageValues(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/scans/"+f.scanID+"/pages/left/edit", `{"field":"angle","value":2}`)
	var resp editResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Page.Angle != 2 {
		t.Errorf("numeric angle = %v, want 2", resp.Page.Angle)
	}

	rec = f.do(t, "POST", "/api/scans/"+f.scanID+"/pages/left/edit", `{"field":"angle","value":"abc"}`)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Page.Angle != 0 {
		t.Errorf("garbage angle = %v, want 0", resp.Page.Angle)
	}
}

func TestEditEndpointErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad field", "/api/scans/" + f.scanID + "/pages/left/edit", `{"field":"depth","value":1}`, http.StatusBadRequest},
		{"bad body", "/api/scans/" + f.scanID + "/pages/left/edit", `{`, http.StatusBadRequest},
		{"unknown page", "/api/scans/" + f.scanID + "/pages/nope/edit", `{"field":"top","value":0}`, http.StatusNotFound},
		{"unknown scan", "/api/scans/scan_missing/pages/left/edit", `{"field":"top","value":0}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := f.do(t, "POST", tc.path, tc.body); rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestPutPagesValidates(t *testing.T) {
	f := newFixture(t)

	three := `[{"id":"a","width":0.1,"height":0.1},{"id":"b","width":0.1,"height":0.1},{"id":"c","width":0.1,"height":0.1}]`
	if rec := f.do(t, "PUT", "/api/scans/"+f.scanID+"/pages", three); rec.Code != http.StatusBadRequest {
		t.Errorf("three pages: status = %d", rec.Code)
	}
	dup := `[{"id":"a","width":0.1,"height":0.1},{"id":"a","width":0.1,"height":0.1}]`
	if rec := f.do(t, "PUT", "/api/scans/"+f.scanID+"/pages", dup); rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate ids: status = %d", rec.Code)
	}

	one := `[{"id":"a","xc":0.5,"yc":0.5,"width":0.4,"height":0.8}]`
	if rec := f.do(t, "PUT", "/api/scans/"+f.scanID+"/pages", one); rec.Code != http.StatusOK {
		t.Fatalf("one page: status = %d: %s", rec.Code, rec.Body)
	}
	rec := f.do(t, "GET", "/api/scans/"+f.scanID+"/pages", "")
	var pages []document.PageDescriptor
	json.NewDecoder(rec.Body).Decode(&pages)
	if len(pages) != 1 || pages[0].ID != "a" {
		t.Errorf("pages after PUT = %+v", pages)
	}
}

func TestGetScanDocument(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/scans/"+f.scanID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc, err := document.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if doc.Scan.ID != f.scanID || len(doc.Pages) != 2 {
		t.Errorf("document = %+v", doc)
	}
}

func TestCropEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/scans/"+f.scanID+"/pages/left/crop.png", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 160 {
		t.Errorf("crop size = %v, want 120x160", img.Bounds())
	}
	r, _, b, _ := img.At(60, 80).RGBA()
	if r>>8 != 0xff || b != 0 {
		t.Errorf("left page center is not red")
	}
}

func TestPreviewEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/scans/"+f.scanID+"/preview.png?max=150&selected=left", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 150 || img.Bounds().Dy() != 100 {
		t.Errorf("preview size = %v, want 150x100", img.Bounds())
	}

	if rec := f.do(t, "GET", "/api/scans/"+f.scanID+"/preview.png?max=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative max: status = %d", rec.Code)
	}
}

func TestQREndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/scans/"+f.scanID+"/qr.png", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Errorf("qr is not a png: %v", err)
	}
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/scans", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "user_test"))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadStoresPNG(t *testing.T) {
	f := newFixture(t)

	req := uploadRequest(t, "spread.png", "image/png", encodePNG(t, image.NewGray(image.Rect(0, 0, 40, 30))))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var doc document.ScanDocument
	json.NewDecoder(rec.Body).Decode(&doc)
	if doc.Scan.Width != 40 || doc.Scan.Height != 30 || doc.Scan.Name != "spread.png" {
		t.Errorf("scan = %+v", doc.Scan)
	}

	img, err := f.files.FetchImage(context.Background(), doc.Scan.ID)
	if err != nil {
		t.Fatalf("FetchImage() failed: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("stored width = %d", img.Bounds().Dx())
	}

	served := f.do(t, "GET", "/scans/files/"+doc.Scan.ID+".png", "")
	if served.Code != http.StatusOK {
		t.Errorf("serve status = %d", served.Code)
	}
}

func TestUploadErrors(t *testing.T) {
	valid := encodePNG(t, image.NewGray(image.Rect(0, 0, 40, 30)))

	tests := []struct {
		name       string
		data       []byte
		setup      func(t *testing.T, store *memStore) *FileFetcher
		wantStatus int
	}{
		{
			name: "undecodable bytes",
			data: []byte("not an image"),
			setup: func(t *testing.T, _ *memStore) *FileFetcher {
				return NewFileFetcher(t.TempDir())
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "scan dir is a file",
			data: valid,
			setup: func(t *testing.T, _ *memStore) *FileFetcher {
				blocker := filepath.Join(t.TempDir(), "scans")
				if err := os.WriteFile(blocker, nil, 0o644); err != nil {
					t.Fatal(err)
				}
				return NewFileFetcher(blocker)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "create fails",
			data: valid,
			setup: func(t *testing.T, store *memStore) *FileFetcher {
				store.createErr = errors.New("db down")
				return NewFileFetcher(t.TempDir())
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			files := tc.setup(t, store)
			h := NewHandler(store, files, page.DefaultEngine, "")

			rec := httptest.NewRecorder()
			h.Upload(rec, uploadRequest(t, "spread.png", "image/png", tc.data))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body)
			}

			// nothing is left behind on disk
			if entries, err := os.ReadDir(files.Dir()); err == nil && len(entries) != 0 {
				t.Errorf("scan dir holds %d files after a failed upload", len(entries))
			}
		})
	}
}

func TestFetchImageRejectsBadIDs(t *testing.T) {
	files := NewFileFetcher(t.TempDir())
	if _, err := files.FetchImage(context.Background(), "../etc/passwd"); err == nil {
		t.Error("FetchImage() accepted a path")
	}
	if _, err := files.FetchImage(context.Background(), typeid.NewScanID()); err != ErrNotFound {
		t.Errorf("FetchImage(missing) = %v, want ErrNotFound", err)
	}
}

func TestRawValue(t *testing.T) {
	tests := map[string]string{
		`"0.25"`: "0.25",
		`0.25`:   "0.25",
		` 1e2 `:  "1e2",
		`"abc"`:  "abc",
	}
	for in, want := range tests {
		if got := RawValue(json.RawMessage(in)); got != want {
			t.Errorf("RawValue(%s) = %q, want %q", in, got, want)
		}
	}
}
