package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/render"
)

var (
	flagPreviewOut string
	flagExportDir  string
	flagSelected   string
	flagMaxSide    int
)

var renderCmd = &cobra.Command{
	Use:   "render <scan>",
	Short: "Draw the scan with its page outlines",
	Long: `Writes a PNG preview of the scan with every page outlined. With
--selected, that page is highlighted and everything outside it is dimmed.

Examples:
  pagectl render scan_01h... -o preview.png
  pagectl render scan_01h... --selected page_01h... --max 800`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var exportCmd = &cobra.Command{
	Use:   "export <scan>",
	Short: "Write every page as an upright PNG",
	Long: `Cuts each page out of the scan, undoes its rotation and writes it to
<dir>/<page id>.png.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	renderCmd.Flags().StringVarP(&flagPreviewOut, "output", "o", "preview.png", "Output file")
	renderCmd.Flags().StringVar(&flagSelected, "selected", "", "Page to highlight")
	renderCmd.Flags().IntVar(&flagMaxSide, "max", 0, "Longest side in pixels (default from settings)")

	exportCmd.Flags().StringVarP(&flagExportDir, "output", "o", ".", "Output directory")
}

func runRender(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	ed, err := s.editor(ctx, args[0])
	if err != nil {
		return err
	}
	if flagSelected != "" {
		if err := ed.Select(flagSelected); err != nil {
			return err
		}
	}
	img, err := s.files.FetchImage(ctx, args[0])
	if err != nil {
		return err
	}

	maxSide := flagMaxSide
	if maxSide <= 0 {
		maxSide = s.settings.Preview.MaxSide
	}
	surface := render.NewRasterFor(img, maxSide)
	surface.SetLineWidth(s.settings.Style.LineWidth)
	surface.SetDim(s.settings.DimColor())
	editor.Paint(surface, img, ed.Pages(), ed.Collection().SelectedID(), s.settings.EditorStyle())

	f, err := os.Create(flagPreviewOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := surface.EncodePNG(f); err != nil {
		return err
	}
	logger.Info("rendered preview", "file", flagPreviewOut, "width", surface.Size().Width, "height", surface.Size().Height)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	ed, err := s.editor(ctx, args[0])
	if err != nil {
		return err
	}
	pages := ed.Pages()
	if len(pages) == 0 {
		return fmt.Errorf("scan %s has no pages", args[0])
	}
	img, err := s.files.FetchImage(ctx, args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(flagExportDir, 0o755); err != nil {
		return err
	}

	for _, b := range pages {
		path := filepath.Join(flagExportDir, b.ID+".png")
		if err := writePNG(path, render.CropPage(img, b)); err != nil {
			return err
		}
		logger.Info("exported page", "page", b.ID, "file", path)
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func writePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
