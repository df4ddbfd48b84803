package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "cutout"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CUTOUT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the root command are honoured.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the first cutout.{yaml,json,toml} found on the search paths,
// overlays CUTOUT_* environment variables and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation loads a specific file without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file on the search paths is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns the current resolved settings for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("model.name", d.Model.Name)
	l.v.SetDefault("model.path", d.Model.Path)
	l.v.SetDefault("model.target_size", d.Model.TargetSize)
	l.v.SetDefault("model.num_threads", d.Model.NumThreads)
	l.v.SetDefault("model.warmup_iterations", d.Model.WarmupIterations)
	l.v.SetDefault("model.normalization.mean", []float64{})
	l.v.SetDefault("model.normalization.std", []float64{})

	l.v.SetDefault("preprocess.resize_filter", d.Preprocess.ResizeFilter)
	l.v.SetDefault("preprocess.max_pixels", d.Preprocess.MaxPixels)

	l.v.SetDefault("refine.enabled", d.Refine.Enabled)
	l.v.SetDefault("refine.edge_threshold", d.Refine.EdgeThreshold)
	l.v.SetDefault("refine.edge_alpha_min", d.Refine.EdgeAlphaMin)
	l.v.SetDefault("refine.edge_alpha_range", d.Refine.EdgeAlphaRange)
	l.v.SetDefault("refine.blend_factor", d.Refine.BlendFactor)
	l.v.SetDefault("refine.smooth_alpha_min", d.Refine.SmoothAlphaMin)
	l.v.SetDefault("refine.smooth_alpha_range", d.Refine.SmoothAlphaRange)

	l.v.SetDefault("output.compression", d.Output.Compression)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.max_batch_items", d.Server.MaxBatchItems)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.output_dir", d.Batch.OutputDir)
	l.v.SetDefault("batch.suffix", d.Batch.Suffix)
	l.v.SetDefault("batch.continue_on_error", d.Batch.ContinueOnError)

	l.v.SetDefault("cache.enabled", d.Cache.Enabled)
	l.v.SetDefault("cache.addr", d.Cache.Addr)
	l.v.SetDefault("cache.password", d.Cache.Password)
	l.v.SetDefault("cache.db", d.Cache.DB)
	l.v.SetDefault("cache.ttl", d.Cache.TTL)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// WriteYAML writes cfg as YAML. The cache password is masked.
func WriteYAML(w io.Writer, cfg Config) error {
	if cfg.Cache.Password != "" {
		cfg.Cache.Password = "********"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the default configuration as YAML. It refuses
// to overwrite an existing file.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := WriteYAML(f, DefaultConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "cutout"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cutout"))
	}

	return append(paths, "/etc/cutout")
}

// PrintConfigInfo prints information about configuration loading.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
