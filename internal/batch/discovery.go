package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/cutout/internal/utils"
)

// discoverImageFiles expands args into image paths. Files named explicitly are
// kept regardless of extension; directory walks only pick supported images.
// A path reached twice is returned once.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			imageFiles = append(imageFiles, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if shouldIncludeFile(arg, includePatterns, excludePatterns) {
				add(arg)
			}
			continue
		}

		files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}

	return imageFiles, nil
}

// discoverInDirectory lists image files in dir in lexical order, descending
// only when recursive.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}

	if len(includePatterns) == 0 {
		return true
	}

	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern checks if a file path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
