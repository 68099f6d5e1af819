package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	// Flags keep their values between Execute calls.
	flagConfigPath, flagName, flagSpread, flagSelected, flagMaxSide, flagForce = "", "", false, "", 0, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("pagectl %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeScan(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}}, image.Point{}, draw.Src)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func decodeSize(t *testing.T, path string) image.Point {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	return image.Pt(cfg.Width, cfg.Height)
}

func TestImportEditRenderExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	src := filepath.Join(dir, "spread.png")
	writeScan(t, src)

	global := []string{"--db", filepath.Join(dir, "drafts.db"), "--scans", filepath.Join(dir, "scans")}
	with := func(args ...string) []string { return append(args, global...) }

	scanID := strings.TrimSpace(run(t, with("import", src, "--spread")...))
	if !strings.HasPrefix(scanID, "scan_") {
		t.Fatalf("import printed %q", scanID)
	}

	if out := run(t, with("list")...); !strings.Contains(out, scanID) || !strings.Contains(out, "300x200") {
		t.Errorf("list output:\n%s", out)
	}

	var doc document.ScanDocument
	if err := yaml.Unmarshal([]byte(run(t, with("show", scanID)...)), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %+v, want 2", doc.Pages)
	}
	left, right := doc.Pages[0], doc.Pages[1]
	if math.Abs(left.XC-0.25) > 1e-9 || math.Abs(right.XC-0.75) > 1e-9 {
		t.Errorf("spread centers = %v, %v; want 0.25, 0.75", left.XC, right.XC)
	}

	// Width grows to the right from a fixed left edge and stops at the scan.
	if got := strings.TrimSpace(run(t, with("edit", scanID, right.ID, "width", "0.6")...)); got != "0.45" {
		t.Errorf("edit printed %q, want 0.45", got)
	}

	preview := filepath.Join(dir, "preview.png")
	run(t, with("render", scanID, "-o", preview, "--max", "150", "--selected", left.ID)...)
	if got := decodeSize(t, preview); got != image.Pt(150, 100) {
		t.Errorf("preview size = %v, want 150x100", got)
	}

	outDir := filepath.Join(dir, "pages")
	run(t, with("export", scanID, "-o", outDir)...)
	if got := decodeSize(t, filepath.Join(outDir, right.ID+".png")); got != image.Pt(135, 170) {
		t.Errorf("exported right page = %v, want 135x170", got)
	}
	if got := decodeSize(t, filepath.Join(outDir, left.ID+".png")); got != image.Pt(120, 170) {
		t.Errorf("exported left page = %v, want 120x170", got)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "editor.yaml")

	run(t, "config", "init", "--config", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "max_rotation: 45") {
		t.Errorf("written settings:\n%s", data)
	}

	flagForce = false
	rootCmd.SetArgs([]string{"config", "init", "--config", path})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Error("second init without --force should fail")
	}
}
