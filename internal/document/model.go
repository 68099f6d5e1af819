package document

import (
	"encoding/json"
	"fmt"

	"github.com/pagecrop/pagecrop/backend-go/internal/geometry"
)

// PageDescriptor is the persisted form of a page box: five normalized
// scalars plus opaque flags. Sets of descriptors are order-insensitive and
// keyed by ID.
type PageDescriptor struct {
	ID     string   `json:"id" yaml:"id"`
	XC     float64  `json:"xc" yaml:"xc"`
	YC     float64  `json:"yc" yaml:"yc"`
	Width  float64  `json:"width" yaml:"width"`
	Height float64  `json:"height" yaml:"height"`
	Angle  float64  `json:"angle" yaml:"angle"`
	Flags  []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// MaxPages is the most pages one scan carries.
const MaxPages = 2

// Scan is a scanned image that carries up to two pages.
type Scan struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	File      string `json:"file" yaml:"file"`
	Synced    bool   `json:"synced" yaml:"synced"`
	CreatedAt string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Canvas returns the reference canvas page geometry is normalized to.
func (s Scan) Canvas() geometry.Canvas {
	return geometry.Canvas{Width: float64(s.Width), Height: float64(s.Height)}
}

// ScanDocument is what the editor host loads for one scan.
type ScanDocument struct {
	Scan  Scan             `json:"scan" yaml:"scan"`
	Pages []PageDescriptor `json:"pages" yaml:"pages"`
}

// Parse decodes a scan document and validates its pages.
func Parse(data []byte) (*ScanDocument, error) {
	var doc ScanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scan document: %w", err)
	}
	if err := ValidatePages(doc.Pages); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidatePages rejects more than MaxPages pages, duplicate ids and
// non-positive sizes.
func ValidatePages(pages []PageDescriptor) error {
	if len(pages) > MaxPages {
		return fmt.Errorf("scan holds at most %d pages, got %d", MaxPages, len(pages))
	}
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		if p.ID == "" {
			return fmt.Errorf("page without id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("page %q: size must be positive", p.ID)
		}
	}
	return nil
}
