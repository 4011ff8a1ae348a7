package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// processIncludes overlays the files named by cfg.Includes onto cfg, in
// order. Patterns may be globs and resolve relative to baseDir. A typical
// use is keeping setup.known_clis in a shared file.
func processIncludes(cfg *Config, baseDir string, visited map[string]bool, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := includePaths(ExpandHome(pattern), baseDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if visited[p] {
				return fmt.Errorf("config includes: circular include of %q", p)
			}
			visited[p] = true
			if err := overlay(cfg, p, visited, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// includePaths expands pattern to absolute paths. Relative patterns may not
// leave baseDir. A glob that matches nothing is not an error.
func includePaths(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
		rel, err := filepath.Rel(baseDir, pattern)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
		}
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		// Literal path: let overlay report the missing file.
		matches = []string{pattern}
	}
	for i, m := range matches {
		if matches[i], err = filepath.Abs(m); err != nil {
			return nil, fmt.Errorf("config includes: abs path %q: %w", m, err)
		}
	}
	return matches, nil
}

// overlay unmarshals path onto cfg and follows its own includes.
func overlay(cfg *Config, path string, visited map[string]bool, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if len(cfg.Includes) > 0 {
		return processIncludes(cfg, filepath.Dir(path), visited, depth)
	}
	return nil
}
