package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

var editCmd = &cobra.Command{
	Use:   "edit <scan> <page> <field> <value>",
	Short: "Edit one field of a page",
	Long: `Applies a value to left, top, width, height or angle of a page and
saves the result. Values that would push the page off the scan are
clamped; text that is not a number reads as 0.

Examples:
  pagectl edit scan_01h... page_01h... width 0.45
  pagectl edit scan_01h... page_01h... angle -- -2.5`,
	Args: cobra.ExactArgs(4),
	RunE: runEdit,
}

var addPageCmd = &cobra.Command{
	Use:   "add-page <scan>",
	Short: "Add a default page in the free half of the spread",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddPage,
}

var removePageCmd = &cobra.Command{
	Use:   "remove-page <scan> <page>",
	Short: "Remove a page",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemovePage,
}

func runEdit(cmd *cobra.Command, args []string) error {
	scanID, pageID, raw := args[0], args[1], args[3]
	f, err := page.ParseField(args[2])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	ed, err := s.editor(ctx, scanID)
	if err != nil {
		return err
	}
	if err := ed.Select(pageID); err != nil {
		return err
	}
	b, out, err := ed.Edit(f, raw)
	if err != nil {
		return err
	}
	if out.Changed {
		if err := ed.Sync(ctx); err != nil {
			return err
		}
	}

	value := editor.Format(b.Value(f), s.settings.Precision)
	switch {
	case !out.Changed:
		logger.Warn("edit left the page unchanged", "field", f, "value", value)
	case out.Clamped:
		logger.Warn("edit clamped", "field", f, "requested", raw, "value", value)
	default:
		logger.Debug("edit applied", "field", f, "value", value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runAddPage(cmd *cobra.Command, args []string) error {
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
	b, err := ed.AddPage()
	if err != nil {
		return err
	}
	if err := ed.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), b.ID)
	return nil
}

func runRemovePage(cmd *cobra.Command, args []string) error {
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
	if err := ed.RemovePage(args[1]); err != nil {
		return err
	}
	return ed.Sync(ctx)
}
