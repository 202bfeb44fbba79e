// Package testutil provides test helper utilities for gauge tests.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/berth-dev/gauge/internal/store"
)

// TempDataDir creates a temporary data directory with the given files and
// returns its path. Files is a map of relative path -> content. Directories
// are created as needed. The directory is removed when the test finishes.
func TempDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// OpenStore opens an in-memory SQLite store that is closed when the test
// finishes.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ConfigWith returns a config.yaml body that sets the given YAML sections
// on top of the defaults. Each section is a complete top-level block.
func ConfigWith(sections ...string) map[string]string {
	body := ""
	for _, s := range sections {
		body += s
		if len(s) > 0 && s[len(s)-1] != '\n' {
			body += "\n"
		}
	}
	return map[string]string{"config.yaml": body}
}

// AutoResumeConfig enables resuming loaded answers without a prompt.
func AutoResumeConfig() map[string]string {
	return ConfigWith("session:\n  timeout_days: 30\n  auto_resume: true")
}

// PruneConfig sets an age-based history retention of days.
func PruneConfig(days int) map[string]string {
	return ConfigWith("history:\n  max_age_days: " + strconv.Itoa(days))
}
