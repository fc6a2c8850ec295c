package cxschema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the manifest schema version written by this module.
const SchemaVersion = "21.0.0"

// MinSchemaVersion is the oldest manifest schema version that can be read.
const MinSchemaVersion = "1.0.0"

// SupportedRange returns the semver constraint manifests must satisfy:
// anything from MinSchemaVersion up to, but excluding, the next major
// release after SchemaVersion.
func SupportedRange() string {
	current := semver.MustParse(SchemaVersion)
	return fmt.Sprintf(">= %s, < %d.0.0", MinSchemaVersion, current.Major()+1)
}

// IsCompatible reports whether a manifest declaring version can be read.
//
// Pre-release versions never satisfy the range. Returns an error if version
// is not a valid semantic version.
func IsCompatible(version string) (bool, error) {
	constraint, err := semver.NewConstraint(SupportedRange())
	if err != nil {
		return false, fmt.Errorf("invalid supported schema range: %w", err)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid manifest version %q: %w", version, err)
	}
	return constraint.Check(v), nil
}
