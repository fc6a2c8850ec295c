// Package manifeststore reads and writes the manifest.json of a cloud
// assembly directory.
package manifeststore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

type LoadOptions struct {
	// SkipVersionCheck accepts manifests whose schema version is outside
	// cxschema.SupportedRange.
	SkipVersionCheck bool
}

// Store persists assembly manifests on a billy filesystem.
//
// Concurrent writers to the same directory are not coordinated; the last
// rename wins.
type Store struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS returns a Store on the host filesystem. Relative paths resolve
// against the working directory.
func NewOS() *Store {
	return New(osfs.New("/"))
}

func (s *Store) Filesystem() billy.Filesystem {
	return s.fs
}

// ManifestPath returns the manifest location for an assembly directory.
func (s *Store) ManifestPath(dir string) string {
	return s.fs.Join(dir, cxschema.ManifestFileName)
}

// resolve makes path absolute against the working directory; the billy
// filesystems are rooted at "/".
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

func (s *Store) Load(dir string, opts LoadOptions) (cxschema.AssemblyManifest, error) {
	dir, err := resolve(dir)
	if err != nil {
		return cxschema.AssemblyManifest{}, err
	}
	path := s.ManifestPath(dir)
	data, err := util.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cxschema.AssemblyManifest{}, ManifestNotFoundError{Path: path}
		}
		return cxschema.AssemblyManifest{}, fmt.Errorf("read assembly manifest: %w", err)
	}

	var manifest cxschema.AssemblyManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return cxschema.AssemblyManifest{}, ManifestParseError{Path: path, Err: err}
	}
	if !opts.SkipVersionCheck {
		if err := checkVersion(path, manifest.Version); err != nil {
			return cxschema.AssemblyManifest{}, err
		}
	}
	slog.Debug("assembly manifest loaded", "path", path, "version", manifest.Version, "artifacts", manifest.Artifacts.Len())
	return manifest, nil
}

// Save writes manifest to dir/manifest.json, creating dir when needed. The
// document is encoded to a temp file in dir and renamed into place, so readers
// see either the previous manifest or the new one. A crash between the two
// steps can leave a stray .manifest-* file behind; it is not cleaned up on the
// next run.
func (s *Store) Save(dir string, manifest cxschema.AssemblyManifest) error {
	dir, err := resolve(dir)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode assembly manifest: %w", err)
	}
	data = append(data, '\n')

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create assembly directory: %w", err)
	}

	tmp, err := s.fs.TempFile(dir, ".manifest-")
	if err != nil {
		return fmt.Errorf("create temp assembly manifest file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = s.fs.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write assembly manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close assembly manifest temp file: %w", err)
	}
	if change, ok := s.fs.(billy.Change); ok {
		if err := change.Chmod(tmpPath, 0o644); err != nil {
			cleanup()
			return fmt.Errorf("chmod assembly manifest temp file: %w", err)
		}
	}
	path := s.ManifestPath(dir)
	if err := s.fs.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("commit assembly manifest file: %w", err)
	}
	slog.Debug("assembly manifest saved", "path", path, "artifacts", manifest.Artifacts.Len())
	return nil
}

func (s *Store) ReadFile(path string) ([]byte, error) {
	path, err := resolve(path)
	if err != nil {
		return nil, err
	}
	return util.ReadFile(s.fs, path)
}

func (s *Store) WriteFile(path string, data []byte) error {
	path, err := resolve(path)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.fs.Join(path, ".."), 0o755); err != nil {
		return err
	}
	return util.WriteFile(s.fs, path, data, 0o644)
}

func (s *Store) Exists(path string) (bool, error) {
	path, err := resolve(path)
	if err != nil {
		return false, err
	}
	_, err = s.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
}

func (s *Store) Stat(path string) (os.FileInfo, error) {
	path, err := resolve(path)
	if err != nil {
		return nil, err
	}
	return s.fs.Stat(path)
}

func (s *Store) MkdirAll(dir string) error {
	dir, err := resolve(dir)
	if err != nil {
		return err
	}
	return s.fs.MkdirAll(dir, 0o755)
}

// RemoveAll deletes dir and everything below it.
func (s *Store) RemoveAll(dir string) error {
	dir, err := resolve(dir)
	if err != nil {
		return err
	}
	return util.RemoveAll(s.fs, dir)
}

func checkVersion(path, version string) error {
	trimmed := strings.TrimSpace(version)
	supported := cxschema.SupportedRange()
	if trimmed == "" {
		return UnsupportedVersionError{Path: path, Version: version, Supported: supported, Err: errors.New("version is required")}
	}
	ok, err := cxschema.IsCompatible(trimmed)
	if err != nil {
		return UnsupportedVersionError{Path: path, Version: version, Supported: supported, Err: err}
	}
	if !ok {
		return UnsupportedVersionError{Path: path, Version: version, Supported: supported}
	}
	return nil
}
