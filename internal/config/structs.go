//nolint:lll
package config

import "time"

// Config is the complete configuration for the cutout application. It covers
// every command (image, batch, pdf, serve) and is assembled from configuration
// files, CUTOUT_* environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Segmentation model
	Model ModelConfig `mapstructure:"model" yaml:"model" json:"model"`

	// Letterbox preprocessing
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`

	// Edge-aware alpha refinement
	Refine RefineConfig `mapstructure:"refine" yaml:"refine" json:"refine"`

	// PNG output
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// HTTP server (serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing (batch and pdf commands)
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Result cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`

	// GPU acceleration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// ModelConfig selects and tunes the segmentation model.
type ModelConfig struct {
	Name             string              `mapstructure:"name" yaml:"name" json:"name"`
	Path             string              `mapstructure:"path" yaml:"path" json:"path"`
	TargetSize       int                 `mapstructure:"target_size" yaml:"target_size" json:"target_size"`
	NumThreads       int                 `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	WarmupIterations int                 `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
	Normalization    NormalizationConfig `mapstructure:"normalization" yaml:"normalization" json:"normalization"`
}

// NormalizationConfig overrides the model preset. Both lists must hold three
// values or be empty.
type NormalizationConfig struct {
	Mean []float64 `mapstructure:"mean" yaml:"mean" json:"mean"`
	Std  []float64 `mapstructure:"std" yaml:"std" json:"std"`
}

// PreprocessConfig controls decoding and letterboxing.
type PreprocessConfig struct {
	ResizeFilter string `mapstructure:"resize_filter" yaml:"resize_filter" json:"resize_filter"`
	MaxPixels    int    `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// RefineConfig mirrors matte.RefineConfig.
type RefineConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	EdgeThreshold    float64 `mapstructure:"edge_threshold" yaml:"edge_threshold" json:"edge_threshold"`
	EdgeAlphaMin     float64 `mapstructure:"edge_alpha_min" yaml:"edge_alpha_min" json:"edge_alpha_min"`
	EdgeAlphaRange   float64 `mapstructure:"edge_alpha_range" yaml:"edge_alpha_range" json:"edge_alpha_range"`
	BlendFactor      float64 `mapstructure:"blend_factor" yaml:"blend_factor" json:"blend_factor"`
	SmoothAlphaMin   float64 `mapstructure:"smooth_alpha_min" yaml:"smooth_alpha_min" json:"smooth_alpha_min"`
	SmoothAlphaRange float64 `mapstructure:"smooth_alpha_range" yaml:"smooth_alpha_range" json:"smooth_alpha_range"`
}

// OutputConfig contains PNG encoding settings.
type OutputConfig struct {
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBatchItems   int    `mapstructure:"max_batch_items" yaml:"max_batch_items" json:"max_batch_items"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Suffix          string `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// CacheConfig configures the Redis result cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string        `mapstructure:"password" yaml:"password" json:"-"`
	DB       int           `mapstructure:"db" yaml:"db" json:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
