package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnvVar points at an explicit onnxruntime shared library.
const LibraryEnvVar = "CUTOUT_ONNXRUNTIME_LIB"

var initMu sync.Mutex

// SessionConfig holds per-session runtime options.
type SessionConfig struct {
	NumThreads int // Intra-op threads, 0 lets the runtime decide
	GPU        GPUConfig
}

// libraryName returns the platform file name of the shared library.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LibraryCandidates lists where the shared library is looked up, in order.
func LibraryCandidates(useGPU bool) []string {
	var paths []string
	if env := os.Getenv(LibraryEnvVar); env != "" {
		paths = append(paths, env)
	}

	name, err := libraryName()
	if err != nil {
		return paths
	}
	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)

	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return paths
}

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// InitRuntime locates the shared library and initializes the process-wide
// ONNX Runtime environment. Repeated calls are no-ops.
func InitRuntime(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	var lib string
	for _, p := range LibraryCandidates(useGPU) {
		if _, err := os.Stat(p); err == nil {
			lib = p
			break
		}
	}
	if lib == "" {
		return errors.New("ONNX Runtime library not found; set " + LibraryEnvVar)
	}

	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", lib, "gpu", useGPU)
	return nil
}

// ShutdownRuntime tears the environment down at process exit.
func ShutdownRuntime() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewSessionOptions builds session options; the caller destroys them.
func NewSessionOptions(cfg SessionConfig) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}

	if cfg.GPU.Enabled {
		if err := appendCUDAProvider(opts, cfg.GPU); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to configure GPU: %w", err)
		}
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}
	return opts, nil
}
