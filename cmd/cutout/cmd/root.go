package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cutout",
	Short: "Background removal with salient-object segmentation models",
	Long: `cutout removes the background from photos using a U²-Net family
segmentation model running on ONNX Runtime. The predicted mask is refined
along object edges and applied as the alpha channel of a PNG.

This tool provides:
- Single image and batch processing from the command line
- Cutouts of images embedded in PDF documents
- An HTTP service with single, batch (ZIP) and WebSocket endpoints

Examples:
  cutout image photo.jpg
  cutout batch photos/ --recursive --output-dir out/
  cutout pdf catalogue.pdf --pages 1-3
  cutout serve --port 8000`,
	SilenceUsage:      true,
	PersistentPreRunE: setupConfigAndLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion(cmd)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $XDG_CONFIG_HOME/cutout, /etc/cutout)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("models-dir", models.DefaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	pf.StringP("model", "m", models.DefaultModel, "segmentation model name")
	pf.String("model-path", "", "explicit ONNX model path (overrides --model lookup)")
	pf.Int("threads", 0, "ONNX Runtime intra-op threads (0 = runtime default)")
	pf.String("resize-filter", "linear", "letterbox resize filter (linear, lanczos, catmullrom, box, nearest)")
	pf.Bool("refine", true, "enable edge-aware alpha refinement")
	pf.String("compression", "default", "PNG compression (default, speed, best, none)")
	pf.Bool("gpu", false, "use the CUDA execution provider")
	pf.Int("gpu-device", 0, "CUDA device ID")

	rootCmd.Flags().Bool("version", false, "print version information and exit")

	bindFlags(pf, map[string]string{
		"verbose":       "verbose",
		"log-level":     "log_level",
		"models-dir":    "models_dir",
		"model":         "model.name",
		"model-path":    "model.path",
		"threads":       "model.num_threads",
		"resize-filter": "preprocess.resize_filter",
		"refine":        "refine.enabled",
		"compression":   "output.compression",
		"gpu":           "gpu.enabled",
		"gpu-device":    "gpu.device",
	})
}

// bindFlags binds each flag name to its viper key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// setupConfigAndLogging loads the configuration and installs the slog handler.
func setupConfigAndLogging(cmd *cobra.Command, args []string) error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(globalConfig),
	})))
	if used := configLoader.GetConfigFileUsed(); used != "" {
		slog.Debug("Loaded configuration", "file", used)
	}
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

func printVersion(cmd *cobra.Command) {
	v, commit, date := version.Info()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cutout version %s\n", v)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", date)
}
