// pagectl crops scanned page spreads from the terminal. It keeps drafts in
// a local SQLite database and works without the server.
//
// Usage:
//
//	pagectl import <image>                      - Import a scan
//	pagectl list                                - List scans
//	pagectl show <scan>                         - Print a scan's pages as YAML
//	pagectl add-page <scan>                     - Add a default page
//	pagectl remove-page <scan> <page>           - Remove a page
//	pagectl edit <scan> <page> <field> <value>  - Edit one field of a page
//	pagectl render <scan>                       - Draw a preview PNG
//	pagectl export <scan>                       - Write each page as an upright PNG
//	pagectl config init                         - Write the default editor settings
//
// Global flags:
//
//	--db <path>      - Draft database (default: ~/.pagecrop/drafts.db)
//	--scans <dir>    - Where imported images live (default: ~/.pagecrop/scans)
//	--config <path>  - Editor settings YAML
//	--verbose        - Debug logging
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pagecrop/pagecrop/backend-go/internal/config"
	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/scan"
	"github.com/pagecrop/pagecrop/backend-go/internal/storage"
)

var (
	// Global flags
	flagDBPath     string
	flagScanDir    string
	flagConfigPath string
	flagVerbose    bool

	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pagectl",
	Short: "Crop pages out of scanned spreads",
	Long: `pagectl edits the oriented page boxes of scanned spreads.

Each scan holds at most two pages. Every edit keeps the page inside the
scan: values that would push a page off the image are clamped.

Examples:
  pagectl import spread.tiff --spread
  pagectl edit scan_01h... page_01h... angle 1.5
  pagectl render scan_01h... -o preview.png
  pagectl export scan_01h... -o pages/`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if flagVerbose {
			level = log.DebugLevel
		}
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "pagectl",
			Level:           level,
		})
		slog.SetDefault(slog.New(logger))
	},
}

func init() {
	drafts, err := config.LoadDrafts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagectl: %v\n", err)
		drafts = config.Drafts{DB: "~/.pagecrop/drafts.db", ScanDir: "~/.pagecrop/scans"}
	}

	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", drafts.DB, "Path to the draft database (env DRAFT_DB)")
	rootCmd.PersistentFlags().StringVar(&flagScanDir, "scans", drafts.ScanDir, "Directory for imported scan images (env DRAFT_SCAN_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Editor settings YAML (default: ~/.pagecrop/editor.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addPageCmd)
	rootCmd.AddCommand(removePageCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

// session is everything a command needs to work on drafts.
type session struct {
	store    *storage.Store
	files    *scan.FileFetcher
	settings config.EditorSettings
}

func openSession() (*session, error) {
	settings, err := config.LoadEditor(flagConfigPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(flagDBPath)
	if err != nil {
		return nil, err
	}
	dir, err := expandHome(flagScanDir)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{store: store, files: scan.NewFileFetcher(dir), settings: settings}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// editor opens scanID in a headless editor backed by the draft store.
func (s *session) editor(ctx context.Context, scanID string) (*editor.Editor, error) {
	ed := editor.New(s.store, s.files, nil, editor.Options{
		Engine: s.settings.Engine(),
		Style:  s.settings.EditorStyle(),
		Logger: slog.Default(),
	})
	if err := ed.Open(ctx, scanID); err != nil {
		return nil, err
	}
	return ed, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
