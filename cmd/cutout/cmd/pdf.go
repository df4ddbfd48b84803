package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/pdf"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/spf13/cobra"
)

var errNoPDFImages = errors.New("no embedded images found")

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf <file.pdf...>",
	Short: "Cut out the images embedded in PDF documents",
	Long: `Extract the raster images embedded in PDF pages and remove the
background from each one.

Cutouts are written as page_<page>_image_<index>.png into --output-dir, or
into <name>_cutouts/ next to each PDF.

Examples:
  cutout pdf catalogue.pdf
  cutout pdf catalogue.pdf --pages 1-3,7
  cutout pdf secret.pdf --password hunter2 --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         processPDFs,
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	f := pdfCmd.Flags()
	f.String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	f.String("output-dir", "", "directory for cutouts (default: <name>_cutouts next to each PDF)")
	f.StringP("format", "f", "text", "summary format (text, json)")
	f.IntP("workers", "w", 0, "parallel workers per document (default: batch.workers)")
	f.StringP("password", "p", "", "user password for encrypted PDFs")
	f.String("owner-password", "", "owner password for encrypted PDFs")
}

func processPDFs(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	pages, _ := f.GetString("pages")
	outputDir, _ := f.GetString("output-dir")
	format, _ := f.GetString("format")
	workers, _ := f.GetInt("workers")
	user, _ := f.GetString("password")
	owner, _ := f.GetString("owner-password")

	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	cfg := GetConfig()
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}

	pl, err := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	proc := pdf.NewProcessorWithConfig(pl, pdf.ProcessorConfig{
		MaxWorkers:  workers,
		Credentials: &pdf.PasswordCredentials{UserPassword: user, OwnerPassword: owner},
	})

	docs, err := proc.ProcessFiles(cmd.Context(), args, pages)
	if err != nil {
		if pdf.IsPasswordError(err) {
			return fmt.Errorf("%w (use --password or --owner-password)", err)
		}
		return err
	}

	var failed, images int
	for i, doc := range docs {
		dir := outputDir
		if dir == "" {
			dir = defaultPDFOutputDir(args[i])
		} else if len(docs) > 1 {
			dir = filepath.Join(dir, strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename)))
		}
		if _, err := doc.WriteTo(dir); err != nil {
			return err
		}
		failed += doc.Failed
		images += len(doc.Images)
		if format == "text" {
			writePDFSummary(cmd.OutOrStdout(), doc, dir)
		}
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(docs); err != nil {
			return err
		}
	}

	if images == 0 {
		return errNoPDFImages
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d embedded images failed", failed, images)
	}
	return nil
}

// defaultPDFOutputDir returns "<dir>/<stem>_cutouts" for a PDF path.
func defaultPDFOutputDir(path string) string {
	base := filepath.Base(path)
	return filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))+"_cutouts")
}

func writePDFSummary(w io.Writer, doc *pdf.DocumentResult, dir string) {
	_, _ = fmt.Fprintf(w, "# %s (%d pages)\n", doc.Filename, doc.TotalPages)
	if len(doc.Images) == 0 {
		_, _ = fmt.Fprintln(w, "  no embedded images")
		return
	}
	for _, img := range doc.Images {
		if img.OK() {
			_, _ = fmt.Fprintf(w, "  page %d image %d -> %s (%dx%d)\n",
				img.Page, img.Index, filepath.Join(dir, img.OutputName), img.Width, img.Height)
		} else {
			_, _ = fmt.Fprintf(w, "  page %d image %d: FAILED: %s\n", img.Page, img.Index, img.Error)
		}
	}
	_, _ = fmt.Fprintf(w, "  %d succeeded, %d failed in %dms\n", doc.Succeeded, doc.Failed, doc.Processing.TotalTimeMs)
}
