package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/spf13/cobra"
)

// modelsCmd lists the model registry.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported segmentation models",
	Long: `List the registered segmentation models with their input size, the
resolved file path and whether the file is present in the models directory.

Examples:
  cutout models
  cutout models --json
  CUTOUT_MODELS_DIR=/opt/models cutout models`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runModelsCommand,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().Bool("json", false, "print as JSON")
}

type modelEntry struct {
	Name        string `json:"name"`
	TargetSize  int    `json:"target_size"`
	Path        string `json:"path"`
	Available   bool   `json:"available"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

func listModels(modelsDir string) []modelEntry {
	var entries []modelEntry
	for _, p := range models.All() {
		path, _ := models.ResolveModelPath(modelsDir, p.Name)
		entries = append(entries, modelEntry{
			Name:        p.Name,
			TargetSize:  p.TargetSize,
			Path:        path,
			Available:   models.Available(modelsDir, p.Name),
			Default:     p.Name == models.DefaultModel,
			Description: p.Description,
		})
	}
	return entries
}

func runModelsCommand(cmd *cobra.Command, args []string) error {
	entries := listModels(GetConfig().ModelsDir)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSIZE\tAVAILABLE\tPATH")
	for _, e := range entries {
		name := e.Name
		if e.Default {
			name += " (default)"
		}
		avail := "no"
		if e.Available {
			avail = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, e.TargetSize, avail, e.Path)
	}
	return tw.Flush()
}
