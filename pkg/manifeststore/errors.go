package manifeststore

import (
	"fmt"
	"strings"
)

type ManifestNotFoundError struct {
	Path string
}

func (e ManifestNotFoundError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		return "assembly manifest not found"
	}
	return fmt.Sprintf("assembly manifest not found: %s", path)
}

type ManifestParseError struct {
	Path string
	Err  error
}

func (e ManifestParseError) Error() string {
	return fmt.Sprintf("parse assembly manifest %s: %v", e.Path, e.Err)
}

func (e ManifestParseError) Unwrap() error {
	return e.Err
}

// UnsupportedVersionError is returned when a manifest declares a schema
// version outside the readable range. Err is set when the version string
// itself could not be parsed.
type UnsupportedVersionError struct {
	Path      string
	Version   string
	Supported string
	Err       error
}

func (e UnsupportedVersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported assembly manifest version %q in %s: %v", e.Version, e.Path, e.Err)
	}
	return fmt.Sprintf("unsupported assembly manifest version %q in %s (supported: %s)", e.Version, e.Path, e.Supported)
}

func (e UnsupportedVersionError) Unwrap() error {
	return e.Err
}
