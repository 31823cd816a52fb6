// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestCalculateFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	hash, err := CalculateFileHash(path)
	if err != nil {
		t.Fatalf("CalculateFileHash() error: %v", err)
	}
	// sha256("hello")
	if want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"; hash != want {
		t.Errorf("CalculateFileHash() = %s, want %s", hash, want)
	}

	if _, err := CalculateFileHash(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCalculateDirHash(t *testing.T) {
	files := map[string]string{
		"install.sh":                "#!/bin/sh\necho hi\n",
		"devcontainer-feature.json": `{"id": "x", "version": "1"}`,
		"lib/util.sh":               "true\n",
	}
	a := t.TempDir()
	b := t.TempDir()
	writeTree(t, a, files)
	writeTree(t, b, files)

	// Modification times do not participate in the hash.
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(b, "install.sh"), old, old); err != nil {
		t.Fatalf("failed to change times: %v", err)
	}

	hashA, err := CalculateDirHash(a)
	if err != nil {
		t.Fatalf("CalculateDirHash() error: %v", err)
	}
	hashB, err := CalculateDirHash(b)
	if err != nil {
		t.Fatalf("CalculateDirHash() error: %v", err)
	}
	if hashA != hashB {
		t.Error("identical trees should hash identically")
	}

	if err := os.WriteFile(filepath.Join(b, "lib", "util.sh"), []byte("false\n"), 0o644); err != nil {
		t.Fatalf("failed to modify file: %v", err)
	}
	hashB2, err := CalculateDirHash(b)
	if err != nil {
		t.Fatalf("CalculateDirHash() error: %v", err)
	}
	if hashB2 == hashA {
		t.Error("hash should change when a file's content changes")
	}
}

func TestCopyFile(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "source.sh")
	dst := filepath.Join(tmpDir, "dest.sh")

	if err := os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read destination file: %v", err)
	}
	if string(content) != "#!/bin/sh\n" {
		t.Errorf("content = %q", content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("failed to stat destination: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("mode = %v, want the executable bit preserved", info.Mode())
	}
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"install.sh":  "echo install",
		"lib/util.sh": "echo util",
	})
	dst := filepath.Join(t.TempDir(), "copy")

	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("CopyDir() error: %v", err)
	}

	for name, want := range map[string]string{"install.sh": "echo install", "lib/util.sh": "echo util"} {
		got, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Errorf("%s not copied: %v", name, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"my-app":      "my-app",
		"My App":      "my-app",
		"node_20.x":   "node_20.x",
		"-leading-":   "leading",
		"@@@":         "workspace",
		"":            "workspace",
		"Rust@Stable": "rust-stable",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
