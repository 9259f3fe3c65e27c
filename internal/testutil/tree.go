// Package testutil builds directory fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// MkTree creates root and the given entries under it. Entries ending in "/"
// become directories; all others become files whose content is the entry
// path. Parent directories are created as needed.
func MkTree(t *testing.T, root string, entries ...string) {
	t.Helper()
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("failed to create root %s: %v", root, err)
	}
	for _, entry := range entries {
		full := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(entry, "/")))
		if strings.HasSuffix(entry, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatalf("failed to create directory %s: %v", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create parent of %s: %v", full, err)
		}
		if err := os.WriteFile(full, []byte(entry), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", full, err)
		}
	}
}

// WriteFile writes content to the file at rel under root, creating parents.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", full, err)
	}
}

// ReadFile returns the content of the file at rel under root.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// ReadTree returns the sorted slash-relative listing of everything under
// root; directories carry a trailing "/".
func ReadTree(t *testing.T, root string) []string {
	t.Helper()
	var entries []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			rel += "/"
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk %s: %v", root, err)
	}
	sort.Strings(entries)
	return entries
}
