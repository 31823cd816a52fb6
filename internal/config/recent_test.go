// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestRecentProjects_Add(t *testing.T) {
	t.Parallel()

	r := &RecentProjects{}
	r.Add("/a")
	r.Add("/b")
	r.Add("/a")

	if want := []string{"/a", "/b"}; !slices.Equal(r.Paths, want) {
		t.Errorf("Paths = %v, want %v", r.Paths, want)
	}

	for i := range MaxRecent + 5 {
		r.Add(fmt.Sprintf("/p%d", i))
	}
	if len(r.Paths) != MaxRecent {
		t.Fatalf("len = %d, want %d", len(r.Paths), MaxRecent)
	}
	if r.Paths[0] != fmt.Sprintf("/p%d", MaxRecent+4) {
		t.Errorf("newest entry = %q", r.Paths[0])
	}
}

func TestRecentProjects_SaveAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", RecentFileName)

	r, err := LoadRecentFrom(path)
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if len(r.Paths) != 0 {
		t.Fatalf("expected empty list, got %v", r.Paths)
	}

	r.Add("/work/one")
	r.Add("/work/two")
	if err := r.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadRecentFrom(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if want := []string{"/work/two", "/work/one"}; !slices.Equal(loaded.Paths, want) {
		t.Errorf("Paths = %v, want %v", loaded.Paths, want)
	}

	if !loaded.Remove("/work/two") || loaded.Remove("/work/two") {
		t.Error("Remove should succeed exactly once")
	}
}

func TestLoadRecentFrom_DropsDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), RecentFileName)
	content := "paths:\n  - /a\n  - /b\n  - /a\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadRecentFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"/a", "/b"}; !slices.Equal(r.Paths, want) {
		t.Errorf("Paths = %v, want %v", r.Paths, want)
	}
}

func TestLoadRecentFrom_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), RecentFileName)
	if err := os.WriteFile(path, []byte("paths: {not: a list"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRecentFrom(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestTouch(t *testing.T) {
	t.Cleanup(SetConfigDirOverride(t.TempDir()))

	if err := Touch("/x"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := Touch("/y"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	r, err := LoadRecent()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"/y", "/x"}; !slices.Equal(r.Paths, want) {
		t.Errorf("Paths = %v, want %v", r.Paths, want)
	}
}
