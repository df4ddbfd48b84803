package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/spf13/cobra"
)

// checkCmd verifies the ONNX Runtime installation and the configured model.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check ONNX Runtime setup and model availability",
	Long: `Check that the ONNX Runtime shared library can be loaded and that the
configured segmentation model file exists.

The runtime library is searched in ` + onnx.LibraryEnvVar + `, the project's
onnxruntime/lib directory and the system library paths.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfg := GetConfig()

		var failed bool
		_, _ = fmt.Fprintln(out, "Checking ONNX Runtime...")
		if err := onnx.InitRuntime(cfg.GPU.Enabled); err != nil {
			failed = true
			_, _ = fmt.Fprintf(out, "  FAIL %v\n", err)
			_, _ = fmt.Fprintln(out, "  Searched:")
			for _, p := range onnx.LibraryCandidates(cfg.GPU.Enabled) {
				_, _ = fmt.Fprintf(out, "    %s\n", p)
			}
		} else {
			_, _ = fmt.Fprintln(out, "  ok")
			_ = onnx.ShutdownRuntime()
		}

		_, _ = fmt.Fprintf(out, "Checking model %q...\n", cfg.Model.Name)
		path := cfg.Model.Path
		if path == "" {
			var err error
			if path, err = models.ResolveModelPath(cfg.ModelsDir, cfg.Model.Name); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil {
			_, _ = fmt.Fprintf(out, "  ok %s\n", path)
		} else {
			failed = true
			_, _ = fmt.Fprintf(out, "  FAIL not found: %s\n", path)
		}

		if failed {
			return errors.New("setup check failed")
		}
		_, _ = fmt.Fprintln(out, "All checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
