package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/pagecrop/pagecrop/backend-go/internal/auth"
	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/render"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

const (
	maxUploadSize     = 50 << 20 // 50MB
	defaultPreviewMax = 1200
)

var uploadTypes = []string{"image/png", "image/jpeg", "image/tiff", "image/webp"}

// Store is what the handler needs from the scan service.
type Store interface {
	editor.PageStore
	Create(ctx context.Context, uploadedBy, scanID, name string, width, height int, file string) (*document.Scan, error)
	Get(ctx context.Context, scanID string) (*document.Scan, error)
	List(ctx context.Context) ([]document.Scan, error)
	Delete(ctx context.Context, scanID, userID string) error
}

// Notifier hears about pages changed outside a live editing room.
type Notifier interface {
	PagesChanged(scanID string, pages []document.PageDescriptor)
}

type Handler struct {
	store     Store
	files     *FileFetcher
	engine    page.Engine
	publicURL string
	notifier  Notifier
}

func NewHandler(store Store, files *FileFetcher, engine page.Engine, publicURL string) *Handler {
	return &Handler{
		store:     store,
		files:     files,
		engine:    engine,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// SetNotifier wires live rooms to REST page updates.
func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

type editRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type editResponse struct {
	Page    document.PageDescriptor `json:"page"`
	Changed bool                    `json:"changed"`
	Clamped bool                    `json:"clamped"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scans, err := h.store.List(r.Context())
	if err != nil {
		slog.Error("list scans failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if scans == nil {
		scans = []document.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

// Upload handles POST /api/scans (multipart form with "file" and optional "name").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 50MB)"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !supportedUpload(contentType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only PNG, JPEG, TIFF and WebP scans are supported"})
		return
	}

	scanID := typeid.NewScanID()
	img, err := h.files.Store(scanID, file)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image"})
			return
		}
		slog.Error("store scan image failed", "scan", scanID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	b := img.Bounds()
	sc, err := h.store.Create(r.Context(), userID, scanID, name, b.Dx(), b.Dy(), scanID+".png")
	if err != nil {
		slog.Error("create scan failed", "error", err)
		if rmErr := h.files.Remove(scanID); rmErr != nil {
			slog.Warn("remove orphaned scan image", "scan", scanID, "error", rmErr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("scan uploaded", "scan", scanID, "width", b.Dx(), "height", b.Dy())
	writeJSON(w, http.StatusCreated, document.ScanDocument{Scan: *sc, Pages: []document.PageDescriptor{}})
}

// Serve returns an http.Handler for the stored bitmaps.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.files.Dir()))
	return http.StripPrefix("/scans/files/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// scan ids are unique, files never change
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]

	doc, err := h.loadDocument(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	scanID := mux.Vars(r)["scanId"]

	if err := h.store.Delete(r.Context(), scanID, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPages(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]

	pages, err := h.store.LoadPages(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if pages == nil {
		pages = []document.PageDescriptor{}
	}
	writeJSON(w, http.StatusOK, pages)
}

// PutPages replaces the page set of a scan.
func (h *Handler) PutPages(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]

	var pages []document.PageDescriptor
	if err := json.NewDecoder(r.Body).Decode(&pages); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(pages) > editor.MaxPages {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": editor.ErrCollectionFull.Error()})
		return
	}
	if err := document.ValidatePages(pages); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.store.PersistPages(r.Context(), scanID, pages); err != nil {
		handleServiceError(w, err)
		return
	}
	h.notify(scanID, pages)
	writeJSON(w, http.StatusOK, pages)
}

// Edit applies one field edit through the anchored edit engine.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scanID, pageID := vars["scanId"], vars["pageId"]

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	field, err := page.ParseField(req.Field)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	doc, err := h.loadDocument(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	pages, box, out, err := ApplyEdit(h.engine, doc, pageID, field, page.ParseValue(RawValue(req.Value)))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if out.Changed {
		if err := h.store.PersistPages(r.Context(), scanID, pages); err != nil {
			handleServiceError(w, err)
			return
		}
		h.notify(scanID, pages)
	}

	writeJSON(w, http.StatusOK, editResponse{Page: box.Descriptor(), Changed: out.Changed, Clamped: out.Clamped})
}

// Crop streams the upright page as PNG.
func (h *Handler) Crop(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scanID, pageID := vars["scanId"], vars["pageId"]

	doc, err := h.loadDocument(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	d, ok := findPage(doc.Pages, pageID)
	if !ok {
		handleServiceError(w, editor.ErrPageNotFound)
		return
	}
	img, err := h.files.FetchImage(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	b := img.Bounds()
	canvas := doc.Scan.Canvas()
	if canvas.Width != float64(b.Dx()) || canvas.Height != float64(b.Dy()) {
		slog.Warn("scan size differs from bitmap", "scan", scanID, "bitmap", b.Size())
	}
	out := render.CropPage(img, page.FromDescriptor(d, canvas))
	writePNG(w, func(dst io.Writer) error { return png.Encode(dst, out) })
}

// Preview renders the scan with every page outline.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]

	maxSide := defaultPreviewMax
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max must be a positive integer"})
			return
		}
		maxSide = n
	}

	doc, err := h.loadDocument(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	img, err := h.files.FetchImage(r.Context(), scanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	canvas := doc.Scan.Canvas()
	boxes := make([]page.Box, len(doc.Pages))
	for i, d := range doc.Pages {
		boxes[i] = page.FromDescriptor(d, canvas)
	}

	surface := render.NewRasterFor(img, maxSide)
	editor.Paint(surface, img, boxes, r.URL.Query().Get("selected"), editor.DefaultStyle)
	writePNG(w, surface.EncodePNG)
}

// QR returns a QR code linking to the scan in the web editor.
func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]

	if _, err := h.store.Get(r.Context(), scanID); err != nil {
		handleServiceError(w, err)
		return
	}

	link := fmt.Sprintf("%s/scans/%s", h.publicURL, scanID)
	data, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		slog.Error("encode qr failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) loadDocument(ctx context.Context, scanID string) (*document.ScanDocument, error) {
	sc, err := h.store.Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	pages, err := h.store.LoadPages(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []document.PageDescriptor{}
	}
	return &document.ScanDocument{Scan: *sc, Pages: pages}, nil
}

func (h *Handler) notify(scanID string, pages []document.PageDescriptor) {
	if h.notifier != nil {
		h.notifier.PagesChanged(scanID, pages)
	}
}

// ApplyEdit edits one page of doc and returns the full updated page set.
func ApplyEdit(engine page.Engine, doc *document.ScanDocument, pageID string, f page.Field, value float64) ([]document.PageDescriptor, page.Box, page.Outcome, error) {
	canvas := doc.Scan.Canvas()
	if !canvas.Valid() {
		return nil, page.Box{}, page.Outcome{}, fmt.Errorf("scan %s has no size", doc.Scan.ID)
	}

	pages := make([]document.PageDescriptor, len(doc.Pages))
	copy(pages, doc.Pages)
	for i, d := range pages {
		if d.ID != pageID {
			continue
		}
		b, out := engine.Apply(page.FromDescriptor(d, canvas), f, value)
		pages[i] = b.Descriptor()
		return pages, b, out, nil
	}
	return nil, page.Box{}, page.Outcome{}, fmt.Errorf("edit %q: %w", pageID, editor.ErrPageNotFound)
}

// RawValue returns the text of a JSON value that may be a string or a number.
func RawValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

func findPage(pages []document.PageDescriptor, id string) (document.PageDescriptor, bool) {
	for _, p := range pages {
		if p.ID == id {
			return p, true
		}
	}
	return document.PageDescriptor{}, false
}

func supportedUpload(contentType string) bool {
	for _, t := range uploadTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func writePNG(w http.ResponseWriter, encode func(io.Writer) error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		slog.Error("encode png failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, editor.ErrPageNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "page not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, editor.ErrCollectionFull):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
