package cxschema

import (
	"testing"
)

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{"current", SchemaVersion, true},
		{"minimum", MinSchemaVersion, true},
		{"older minor", "17.1.0", true},
		{"build metadata", "21.0.0+build", true},
		{"next major", "22.0.0", false},
		{"far future", "40.0.0", false},
		{"below minimum", "0.36.0", false},
		{"pre-release", "21.0.0-rc.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsCompatible(tt.version)
			if err != nil {
				t.Fatalf("IsCompatible(%q) unexpected error = %v", tt.version, err)
			}
			if got != tt.want {
				t.Errorf("IsCompatible(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestIsCompatibleRejectsInvalidVersions(t *testing.T) {
	for _, version := range []string{"", "abc", "1.2.3.4"} {
		if _, err := IsCompatible(version); err == nil {
			t.Errorf("IsCompatible(%q) expected error", version)
		}
	}
}

func TestSupportedRange(t *testing.T) {
	if got, want := SupportedRange(), ">= 1.0.0, < 22.0.0"; got != want {
		t.Fatalf("SupportedRange() = %q, want %q", got, want)
	}
}
