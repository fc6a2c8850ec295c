// Package assets reads asset manifests and publishes file assets to an
// S3-compatible object store.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Packaging string

const (
	PackagingFile Packaging = "file"
	PackagingZip  Packaging = "zip"
)

// Manifest enumerates the assets that must be published before the stacks
// that reference them are deployed.
type Manifest struct {
	Version      string                      `json:"version"`
	Files        map[string]FileAsset        `json:"files,omitempty"`
	DockerImages map[string]DockerImageAsset `json:"dockerImages,omitempty"`
}

type FileAsset struct {
	DisplayName  string                     `json:"displayName,omitempty"`
	Source       FileSource                 `json:"source"`
	Destinations map[string]FileDestination `json:"destinations"`
}

type FileSource struct {
	// Path is relative to the directory holding the asset manifest.
	Path       string    `json:"path,omitempty"`
	Packaging  Packaging `json:"packaging,omitempty"`
	Executable []string  `json:"executable,omitempty"`
}

type FileDestination struct {
	BucketName           string `json:"bucketName"`
	ObjectKey            string `json:"objectKey"`
	Region               string `json:"region,omitempty"`
	AssumeRoleArn        string `json:"assumeRoleArn,omitempty"`
	AssumeRoleExternalID string `json:"assumeRoleExternalId,omitempty"`
}

type DockerImageAsset struct {
	DisplayName  string                            `json:"displayName,omitempty"`
	Source       DockerImageSource                 `json:"source"`
	Destinations map[string]DockerImageDestination `json:"destinations"`
}

type DockerImageSource struct {
	Directory         string            `json:"directory,omitempty"`
	DockerFile        string            `json:"dockerFile,omitempty"`
	DockerBuildArgs   map[string]string `json:"dockerBuildArgs,omitempty"`
	DockerBuildTarget string            `json:"dockerBuildTarget,omitempty"`
	Platform          string            `json:"platform,omitempty"`
	Executable        []string          `json:"executable,omitempty"`
}

type DockerImageDestination struct {
	RepositoryName       string `json:"repositoryName"`
	ImageTag             string `json:"imageTag"`
	Region               string `json:"region,omitempty"`
	AssumeRoleArn        string `json:"assumeRoleArn,omitempty"`
	AssumeRoleExternalID string `json:"assumeRoleExternalId,omitempty"`
}

// FileReader is the slice of a filesystem needed to read asset manifests.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

type MissingManifestError struct {
	Path string
}

func (e MissingManifestError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		return "asset manifest not found"
	}
	return fmt.Sprintf("asset manifest not found: %s", path)
}

func Read(reader FileReader, path string) (Manifest, error) {
	data, err := reader.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("read asset manifest: %w", MissingManifestError{Path: path})
		}
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode asset manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("asset manifest %s: %w", path, err)
	}
	return manifest, nil
}

func (m Manifest) Validate() error {
	for _, id := range m.FileIDs() {
		asset := m.Files[id]
		if strings.TrimSpace(asset.Source.Path) == "" {
			return fmt.Errorf("files[%s].source.path is required", id)
		}
		switch asset.Source.Packaging {
		case "", PackagingFile, PackagingZip:
		default:
			return fmt.Errorf("files[%s].source.packaging %q is not supported", id, asset.Source.Packaging)
		}
		for _, destID := range sortedKeys(asset.Destinations) {
			dest := asset.Destinations[destID]
			if strings.TrimSpace(dest.BucketName) == "" || strings.TrimSpace(dest.ObjectKey) == "" {
				return fmt.Errorf("files[%s].destinations[%s] requires bucketName and objectKey", id, destID)
			}
		}
	}
	for _, id := range m.DockerImageIDs() {
		for _, destID := range sortedKeys(m.DockerImages[id].Destinations) {
			dest := m.DockerImages[id].Destinations[destID]
			if strings.TrimSpace(dest.RepositoryName) == "" || strings.TrimSpace(dest.ImageTag) == "" {
				return fmt.Errorf("dockerImages[%s].destinations[%s] requires repositoryName and imageTag", id, destID)
			}
		}
	}
	return nil
}

// FileIDs returns the file asset ids in sorted order.
func (m Manifest) FileIDs() []string {
	return sortedKeys(m.Files)
}

// DockerImageIDs returns the image asset ids in sorted order.
func (m Manifest) DockerImageIDs() []string {
	return sortedKeys(m.DockerImages)
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
