package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <file...>",
	Short: "Remove the background from one or more images",
	Long: `Remove the background from image files and write each cutout as a PNG
with an alpha channel.

Supported formats: JPEG, PNG, BMP, WebP

Examples:
  cutout image photo.jpg
  cutout image photo.jpg -o photo_cutout.png
  cutout image *.png --output-dir cutouts/ --timings`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runImageCommand,
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().StringP("output", "o", "", "output file (single input only)")
	imageCmd.Flags().String("output-dir", "", "directory for cutouts (default: next to each input)")
	imageCmd.Flags().String("suffix", "_nobg", "suffix appended to the input name")
	imageCmd.Flags().Bool("timings", false, "print per-stage timings")
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	suffix, _ := cmd.Flags().GetString("suffix")
	timings, _ := cmd.Flags().GetBool("timings")

	if output != "" && len(args) > 1 {
		return errors.New("--output can only be used with a single input file")
	}

	cfg := GetConfig()
	pl, err := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	var failed int
	for _, in := range args {
		out := output
		if out == "" {
			dir := outputDir
			if dir == "" {
				dir = filepath.Dir(in)
			}
			out = filepath.Join(dir, utils.OutputName(in, suffix))
		}

		res, err := cutoutFile(cmd, pl, in, out)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", in, err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d)\n", in, out, res.Width, res.Height)
		if timings {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", res.Timings.String())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

// cutoutFile processes in and writes the PNG to out.
func cutoutFile(cmd *cobra.Command, pl *pipeline.Pipeline, in, out string) (*pipeline.Output, error) {
	data, err := utils.ReadImageFile(in)
	if err != nil {
		return nil, err
	}
	res, err := pl.Process(cmd.Context(), data)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	//nolint:gosec // G306: cutouts are regular user-facing image files
	if err := os.WriteFile(out, res.PNG, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return res, nil
}
