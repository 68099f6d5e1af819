package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

var (
	flagName   string
	flagSpread bool
)

var importCmd = &cobra.Command{
	Use:   "import <image>",
	Short: "Import a scanned image",
	Long: `Copies a PNG, JPEG, TIFF or WebP scan into the scan directory and
registers it in the draft database.

Examples:
  pagectl import spread.tiff
  pagectl import spread.jpg --name "Vol. 2, p. 14-15" --spread`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported scans",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <scan>",
	Short: "Print a scan and its pages as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	importCmd.Flags().StringVar(&flagName, "name", "", "Display name (default: file name)")
	importCmd.Flags().BoolVar(&flagSpread, "spread", false, "Start with a left and a right page")
}

func runImport(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	scanID := typeid.NewScanID()
	img, err := s.files.Store(scanID, f)
	if err != nil {
		return err
	}

	name := flagName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	now := time.Now().UTC().Format(time.RFC3339)
	sc := document.Scan{
		ID:        scanID,
		Name:      name,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		File:      s.files.Path(scanID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx := cmd.Context()
	if err := s.store.SaveScan(ctx, sc); err != nil {
		return err
	}

	if flagSpread {
		ed, err := s.editor(ctx, scanID)
		if err != nil {
			return err
		}
		first, err := ed.AddPage()
		if err != nil {
			return err
		}
		// The first page starts centered; shift it into the left half
		// before the second page takes the right one.
		if _, _, err := ed.EditValue(page.FieldLeft, first.Value(page.FieldLeft)-0.25); err != nil {
			return err
		}
		if _, err := ed.AddPage(); err != nil {
			return err
		}
		if err := ed.Sync(ctx); err != nil {
			return err
		}
	}

	logger.Info("imported scan", "scan", scanID, "width", sc.Width, "height", sc.Height)
	fmt.Fprintln(cmd.OutOrStdout(), scanID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	scans, err := s.store.ListScans(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans imported yet.")
		fmt.Fprintln(out, "Run 'pagectl import <image>' to add one.")
		return nil
	}

	maxIDLen := len("ID")
	for _, sc := range scans {
		maxIDLen = max(maxIDLen, len(sc.ID))
	}
	fmt.Fprintf(out, "  %-*s  %-11s  %s\n", maxIDLen, "ID", "Size", "Name")
	fmt.Fprintf(out, "  %-*s  %-11s  %s\n", maxIDLen, "--", "----", "----")
	for _, sc := range scans {
		fmt.Fprintf(out, "  %-*s  %-11s  %s\n", maxIDLen, sc.ID, fmt.Sprintf("%dx%d", sc.Width, sc.Height), sc.Name)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	sc, err := s.store.GetScan(ctx, args[0])
	if err != nil {
		return err
	}
	pages, err := s.store.LoadPages(ctx, args[0])
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(document.ScanDocument{Scan: *sc, Pages: pages})
}
