package models

import (
	"errors"
	"os"
	"path/filepath"
)

// DefaultModelsDir is the models directory relative to the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "CUTOUT_MODELS_DIR"

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir resolves the models directory.
// Priority: explicit argument, then CUTOUT_MODELS_DIR, then <project root>/models.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath returns the on-disk path of a registered model. Models may live
// either flat in the models directory or under a segmentation/ subdirectory; the
// flat path is returned when neither exists.
func ResolveModelPath(modelsDir, name string) (string, error) {
	preset, err := Lookup(name)
	if err != nil {
		return "", err
	}
	base := GetModelsDir(modelsDir)

	nested := filepath.Join(base, "segmentation", preset.Filename)
	if _, err := os.Stat(nested); err == nil {
		return nested, nil
	}
	return filepath.Join(base, preset.Filename), nil
}

// Available reports whether the model file exists.
func Available(modelsDir, name string) bool {
	p, err := ResolveModelPath(modelsDir, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
