package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	// A symlink inside the safe directory pointing out of it.
	symlinkPath := filepath.Join(safeDir, "evil-symlink")
	if err := os.Symlink(unsafeDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "run.jsonl"), false},
		{"new nested file", filepath.Join(safeDir, "out", "deep", "run.jsonl"), false},
		{"directory itself", safeDir, false},
		{"dot-dot escape", filepath.Join(safeDir, "..", "unsafe", "run.jsonl"), true},
		{"sibling directory", filepath.Join(unsafeDir, "run.jsonl"), true},
		{"new file behind symlink", filepath.Join(symlinkPath, "run.jsonl"), true},
		{"new nested file behind symlink", filepath.Join(symlinkPath, "a", "b.jsonl"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if tt.wantError {
				if !errors.Is(err, ErrPathEscapes) {
					t.Errorf("expected ErrPathEscapes, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateExportPath(t *testing.T) {
	if err := ValidateExportPath(filepath.Join(os.TempDir(), "ckf-export.jsonl")); err != nil {
		t.Errorf("temp dir path rejected: %v", err)
	}
	if err := ValidateExportPath("estimates.jsonl"); err != nil {
		t.Errorf("relative path rejected: %v", err)
	}
	if err := ValidateExportPath("/etc/ckf-export.jsonl"); err == nil {
		t.Error("expected /etc path to be rejected")
	}
}
