package assets

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
)

// zipEpoch is stamped on every entry so identical trees produce identical archives.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

func zipDirectory(fs billy.Filesystem, dir string) ([]byte, error) {
	files, err := listFiles(fs, dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	for _, rel := range files {
		header := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		}
		header.SetMode(0o644)
		w, err := archive.CreateHeader(header)
		if err != nil {
			_ = archive.Close()
			return nil, err
		}
		if err := copyFile(fs, fs.Join(dir, filepath.FromSlash(rel)), w); err != nil {
			_ = archive.Close()
			return nil, err
		}
	}
	if err := archive.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
