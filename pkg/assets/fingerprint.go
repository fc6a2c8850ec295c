package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"
)

// Fingerprint returns the SHA-256 digest of a file's content. For a
// directory the digest covers every regular file below it: its slash
// separated relative path followed by its content, in path order.
func Fingerprint(fs billy.Filesystem, path string) (digest.Digest, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		data, err := util.ReadFile(fs, path)
		if err != nil {
			return "", err
		}
		return digest.FromBytes(data), nil
	}

	files, err := listFiles(fs, path)
	if err != nil {
		return "", err
	}
	digester := digest.Canonical.Digester()
	hash := digester.Hash()
	for _, rel := range files {
		if _, err := io.WriteString(hash, rel+"\x00"); err != nil {
			return "", err
		}
		if err := copyFile(fs, fs.Join(path, filepath.FromSlash(rel)), hash); err != nil {
			return "", err
		}
		if _, err := hash.Write([]byte{0}); err != nil {
			return "", err
		}
	}
	return digester.Digest(), nil
}

// listFiles returns the regular files below root as sorted slash separated
// paths relative to root.
func listFiles(fs billy.Filesystem, root string) ([]string, error) {
	var files []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func copyFile(fs billy.Filesystem, path string, w io.Writer) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
