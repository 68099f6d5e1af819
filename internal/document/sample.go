package document

import (
	"time"

	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

// NewSampleDocument returns a slightly skewed two-page spread on a
// 3000x2000 scan, used by the playground and the wasm demo.
func NewSampleDocument(scanID string) *ScanDocument {
	now := time.Now().UTC().Format(time.RFC3339)

	return &ScanDocument{
		Scan: Scan{
			ID:        scanID,
			Name:      "Sample spread",
			Width:     3000,
			Height:    2000,
			Synced:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Pages: []PageDescriptor{
			{
				ID:     typeid.NewPageID(),
				XC:     0.27,
				YC:     0.5,
				Width:  0.4,
				Height: 0.85,
				Angle:  -1.5,
			},
			{
				ID:     typeid.NewPageID(),
				XC:     0.73,
				YC:     0.5,
				Width:  0.4,
				Height: 0.85,
				Angle:  0.75,
			},
		},
	}
}
