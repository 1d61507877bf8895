/*
Layout tests.
*/
package reports

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLayout_Validation(t *testing.T) {
	if _, err := NewLayout(""); err == nil {
		t.Error("expected error for empty workspace")
	}
	if _, err := NewLayout("relative/path"); err == nil {
		t.Error("expected error for relative workspace")
	}
}

func TestLayout_Paths(t *testing.T) {
	ws := t.TempDir()
	layout, err := NewLayout(ws)
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	tests := []struct {
		name string
		got  string
		rel  string
	}{
		{"Dir", layout.Dir(), RelDir},
		{"JUnitXML", layout.JUnitXML(), RelJUnitXML},
		{"CoverageXML", layout.CoverageXML(), RelCoverageXML},
		{"CoverageHTML", layout.CoverageHTML(), RelCoverageHTML},
		{"Flake8", layout.Flake8(), RelFlake8},
		{"BanditJSON", layout.BanditJSON(), RelBanditJSON},
		{"SafetyJSON", layout.SafetyJSON(), RelSafetyJSON},
		{"TrivyJSON", layout.TrivyJSON(), RelTrivyJSON},
	}

	for _, tt := range tests {
		want := filepath.Join(ws, filepath.FromSlash(tt.rel))
		if tt.got != want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, want)
		}
	}

	if layout.Workspace() != ws {
		t.Errorf("Workspace() = %q, want %q", layout.Workspace(), ws)
	}
}

func TestLayout_EnsureDir(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	if err := layout.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(layout.Dir())
	if err != nil {
		t.Fatalf("report dir missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("report path is not a directory")
	}

	// Idempotent.
	if err := layout.EnsureDir(); err != nil {
		t.Errorf("second EnsureDir failed: %v", err)
	}
}
