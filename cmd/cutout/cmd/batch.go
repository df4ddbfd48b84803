package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cutout/internal/batch"
	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch <paths...>",
	Short: "Remove backgrounds from many images in parallel",
	Long: `Remove the background from every image found in the given files and
directories using a pool of workers sharing one model session.

Existing outputs are skipped unless --overwrite is given.

Examples:
  cutout batch *.jpg
  cutout batch photos/ --recursive --workers 8 --output-dir cutouts/
  cutout batch photos/ --include '*.jpg' --exclude '*_thumb.*'
  cutout batch photos/ --format json --output results.json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addBatchFlags(batchCmd.Flags())

	bindFlags(batchCmd.Flags(), map[string]string{
		"workers":    "batch.workers",
		"output-dir": "batch.output_dir",
		"suffix":     "batch.suffix",
	})
}

func addBatchFlags(f *pflag.FlagSet) {
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.String("output-dir", "", "directory for cutouts (default: next to each input)")
	f.String("suffix", "_nobg", "suffix appended to output names")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.Bool("overwrite", false, "replace existing outputs")
	f.Bool("stop-on-error", false, "stop at the first failed image")
	f.StringP("format", "f", "text", "summary format (text, json, csv)")
	f.StringP("output", "o", "", "write the summary to a file (default: stdout)")
	f.Bool("progress", true, "show a progress bar")
	f.BoolP("quiet", "q", false, "suppress progress and statistics")
	f.Bool("stats", false, "print processing statistics")
}

// configToBatchConfig maps the loaded configuration and command flags to batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	bc := batch.DefaultConfig()
	bc.Pipeline = cfg.ToPipelineConfig()
	bc.Workers = cfg.Batch.Workers
	bc.OutputDir = cfg.Batch.OutputDir
	bc.Suffix = cfg.Batch.Suffix
	bc.ContinueOnError = cfg.Batch.ContinueOnError

	f := cmd.Flags()
	if f.Changed("stop-on-error") {
		stop, _ := f.GetBool("stop-on-error")
		bc.ContinueOnError = !stop
	}
	bc.Recursive, _ = f.GetBool("recursive")
	bc.IncludePatterns, _ = f.GetStringSlice("include")
	bc.ExcludePatterns, _ = f.GetStringSlice("exclude")
	bc.Overwrite, _ = f.GetBool("overwrite")
	bc.Format, _ = f.GetString("format")
	bc.OutputFile, _ = f.GetString("output")
	bc.ShowProgress, _ = f.GetBool("progress")
	bc.Quiet, _ = f.GetBool("quiet")
	bc.ShowStats, _ = f.GetBool("stats")
	return bc
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	bc := configToBatchConfig(GetConfig(), cmd)
	switch bc.Format {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("unsupported format: %s", bc.Format)
	}

	res, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if res == nil {
		return err
	}

	if saveErr := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	if bc.ShowStats {
		res.PrintStats(cmd.OutOrStdout(), bc.Quiet)
	}
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", res.Failed, len(res.Files))
	}
	return nil
}
