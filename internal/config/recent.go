// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	// RecentFileName is the file in the config directory that lists
	// recently opened projects.
	RecentFileName = "recent.yaml"
	// MaxRecent is the number of projects kept in the recent list.
	MaxRecent = 20
)

type (
	// RecentProjects is the most-recently-opened list, newest first.
	RecentProjects struct {
		path  string
		Paths []string `yaml:"paths"`
	}
)

// LoadRecent reads the recent projects list from the config directory.
// A missing file yields an empty list.
func LoadRecent() (*RecentProjects, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadRecentFrom(filepath.Join(cfgDir, RecentFileName))
}

// LoadRecentFrom reads the recent projects list from path.
func LoadRecentFrom(path string) (*RecentProjects, error) {
	r := &RecentProjects{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent projects: %w", err)
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]bool, len(r.Paths))
	r.Paths = slices.DeleteFunc(r.Paths, func(p string) bool {
		dup := seen[p]
		seen[p] = true
		return dup
	})
	return r, nil
}

// Add moves projectPath to the front of the list, dropping duplicates and
// anything past MaxRecent.
func (r *RecentProjects) Add(projectPath string) {
	paths := make([]string, 0, len(r.Paths)+1)
	paths = append(paths, projectPath)
	for _, p := range r.Paths {
		if p != projectPath {
			paths = append(paths, p)
		}
	}
	if len(paths) > MaxRecent {
		paths = paths[:MaxRecent]
	}
	r.Paths = paths
}

// Remove drops projectPath from the list and reports whether it was present.
func (r *RecentProjects) Remove(projectPath string) bool {
	n := len(r.Paths)
	r.Paths = slices.DeleteFunc(r.Paths, func(p string) bool { return p == projectPath })
	return len(r.Paths) != n
}

// Save writes the list back to the file it was loaded from.
func (r *RecentProjects) Save() error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode recent projects: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write recent projects: %w", err)
	}
	return nil
}

// Touch records projectPath as the most recently opened project.
func Touch(projectPath string) error {
	r, err := LoadRecent()
	if err != nil {
		return err
	}
	r.Add(projectPath)
	return r.Save()
}
