package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagecrop/pagecrop/backend-go/internal/db/dbgen"
	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
)

var (
	ErrNotFound  = errors.New("scan not found")
	ErrForbidden = errors.New("forbidden")
)

// Service stores scans and their pages in postgres.
type Service struct {
	pool    *pgxpool.Pool
	queries *dbgen.Queries
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, queries: dbgen.New(pool)}
}

func (s *Service) Create(ctx context.Context, uploadedBy, scanID, name string, width, height int, file string) (*document.Scan, error) {
	dbScan, err := s.queries.CreateScan(ctx, dbgen.CreateScanParams{
		ID:         scanID,
		UploadedBy: uploadedBy,
		Name:       name,
		Width:      int32(width),
		Height:     int32(height),
		File:       file,
	})
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	return dbScanToScan(dbScan), nil
}

func (s *Service) Get(ctx context.Context, scanID string) (*document.Scan, error) {
	dbScan, err := s.queries.GetScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return dbScanToScan(dbScan), nil
}

func (s *Service) List(ctx context.Context) ([]document.Scan, error) {
	dbScans, err := s.queries.ListScans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	scans := make([]document.Scan, len(dbScans))
	for i, sc := range dbScans {
		scans[i] = *dbScanToScan(sc)
	}
	return scans, nil
}

// Delete removes a scan. Only the uploader may delete it.
func (s *Service) Delete(ctx context.Context, scanID, userID string) error {
	dbScan, err := s.queries.GetScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get scan: %w", err)
	}
	if dbScan.UploadedBy != userID {
		return ErrForbidden
	}
	return s.queries.DeleteScan(ctx, scanID)
}

// LoadPages returns a scan's pages in saved order.
func (s *Service) LoadPages(ctx context.Context, scanID string) ([]document.PageDescriptor, error) {
	if _, err := s.Get(ctx, scanID); err != nil {
		return nil, err
	}

	dbPages, err := s.queries.ListPages(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	pages := make([]document.PageDescriptor, len(dbPages))
	for i, p := range dbPages {
		pages[i] = dbPageToDescriptor(p)
	}
	return pages, nil
}

// PersistPages replaces a scan's pages in one transaction: pages no longer
// present are deleted, the rest are upserted in order.
func (s *Service) PersistPages(ctx context.Context, scanID string, pages []document.PageDescriptor) error {
	if len(pages) > editor.MaxPages {
		return fmt.Errorf("persist %d pages: %w", len(pages), editor.ErrCollectionFull)
	}
	if err := document.ValidatePages(pages); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := s.queries.WithTx(tx)
	if _, err := q.GetScan(ctx, scanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get scan: %w", err)
	}

	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	if err := q.DeletePagesExcept(ctx, dbgen.DeletePagesExceptParams{ScanID: scanID, Column2: ids}); err != nil {
		return fmt.Errorf("delete stale pages: %w", err)
	}

	for i, p := range pages {
		flags := p.Flags
		if flags == nil {
			flags = []string{}
		}
		err := q.UpsertPage(ctx, dbgen.UpsertPageParams{
			ScanID:   scanID,
			ID:       p.ID,
			Position: int32(i),
			Xc:       p.XC,
			Yc:       p.YC,
			Width:    p.Width,
			Height:   p.Height,
			Angle:    p.Angle,
			Flags:    flags,
		})
		if err != nil {
			return fmt.Errorf("upsert page %s: %w", p.ID, err)
		}
	}

	if err := q.TouchScan(ctx, scanID); err != nil {
		return fmt.Errorf("touch scan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func dbScanToScan(s dbgen.Scan) *document.Scan {
	return &document.Scan{
		ID:        s.ID,
		Name:      s.Name,
		Width:     int(s.Width),
		Height:    int(s.Height),
		File:      s.File,
		Synced:    true,
		CreatedAt: s.CreatedAt.Time.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: s.UpdatedAt.Time.Format("2006-01-02T15:04:05Z"),
	}
}

func dbPageToDescriptor(p dbgen.Page) document.PageDescriptor {
	d := document.PageDescriptor{
		ID:     p.ID,
		XC:     p.Xc,
		YC:     p.Yc,
		Width:  p.Width,
		Height: p.Height,
		Angle:  p.Angle,
	}
	if len(p.Flags) > 0 {
		d.Flags = p.Flags
	}
	return d
}
