package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

// ErrInvalidImage marks an upload that could not be decoded.
var ErrInvalidImage = errors.New("invalid image")

// FileFetcher reads scan bitmaps from a directory. Every scan is stored as
// <scanID>.png regardless of the uploaded format.
type FileFetcher struct {
	dir string
}

func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{dir: dir}
}

// Dir is the storage directory.
func (f *FileFetcher) Dir() string {
	return f.dir
}

// Path returns where a scan's bitmap lives.
func (f *FileFetcher) Path(scanID string) string {
	return filepath.Join(f.dir, scanID+".png")
}

func (f *FileFetcher) FetchImage(ctx context.Context, scanID string) (image.Image, error) {
	if err := typeid.Validate(scanID, typeid.PrefixScan); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path(scanID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open scan image: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode scan image: %w", err)
	}
	return img, nil
}

// Store decodes an uploaded PNG, JPEG, TIFF or WebP and saves it as PNG.
func (f *FileFetcher) Store(scanID string, r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w: %w", ErrInvalidImage, err)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scan dir: %w", err)
	}
	path := f.Path(scanID)
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create scan file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return img, nil
}

// Remove deletes a stored bitmap. A missing file is not an error.
func (f *FileFetcher) Remove(scanID string) error {
	if err := os.Remove(f.Path(scanID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove scan image: %w", err)
	}
	return nil
}
