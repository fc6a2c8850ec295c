package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/opencontainers/go-digest"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

const zipContentType = "application/zip"

// ObjectStore abstracts the S3-compatible bucket file assets are copied to.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

type Publisher struct {
	fs    billy.Filesystem
	store ObjectStore
}

func NewPublisher(fs billy.Filesystem, store ObjectStore) *Publisher {
	return &Publisher{fs: fs, store: store}
}

// PublishResult describes what happened to one asset destination.
type PublishResult struct {
	AssetID       string
	DestinationID string
	Bucket        string
	Key           string
	Digest        digest.Digest
	ContentType   string
	// Skipped is set when the object was already present.
	Skipped bool
}

// PublishFiles uploads every file asset of manifest to each of its
// destinations. manifestDir is the directory holding the asset manifest;
// source paths are resolved against it. Destinations whose object already
// exists are skipped. Assets and destinations are processed in id order and
// the first failure stops publishing.
func (p *Publisher) PublishFiles(ctx context.Context, manifestDir string, manifest Manifest, values cxschema.PlaceholderValues) ([]PublishResult, error) {
	var results []PublishResult
	for _, assetID := range manifest.FileIDs() {
		asset := manifest.Files[assetID]
		payload, err := p.packageSource(manifestDir, asset.Source)
		if err != nil {
			return results, fmt.Errorf("package file asset %s: %w", assetID, err)
		}

		for _, destID := range sortedKeys(asset.Destinations) {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			result, err := p.publishOne(ctx, assetID, destID, asset.Destinations[destID], payload, values)
			if err != nil {
				return results, err
			}
			results = append(results, result)
		}
	}
	return results, nil
}

type packagedAsset struct {
	data        []byte
	contentType string
	digest      digest.Digest
}

func (p *Publisher) packageSource(manifestDir string, source FileSource) (packagedAsset, error) {
	path := p.fs.Join(manifestDir, source.Path)
	info, err := p.fs.Stat(path)
	if err != nil {
		return packagedAsset{}, err
	}

	var data []byte
	contentType := ""
	switch {
	case info.IsDir():
		if source.Packaging == PackagingFile {
			return packagedAsset{}, fmt.Errorf("%s is a directory but packaging is %q", path, PackagingFile)
		}
		data, err = zipDirectory(p.fs, path)
		contentType = zipContentType
	case source.Packaging == PackagingZip:
		data, err = util.ReadFile(p.fs, path)
		contentType = zipContentType
	default:
		data, err = util.ReadFile(p.fs, path)
		contentType = mimetype.Detect(data).String()
	}
	if err != nil {
		return packagedAsset{}, err
	}
	return packagedAsset{data: data, contentType: contentType, digest: digest.FromBytes(data)}, nil
}

func (p *Publisher) publishOne(ctx context.Context, assetID, destID string, dest FileDestination, payload packagedAsset, values cxschema.PlaceholderValues) (PublishResult, error) {
	bucket := cxschema.ReplacePlaceholdersInString(dest.BucketName, values)
	key := cxschema.ReplacePlaceholdersInString(dest.ObjectKey, values)
	result := PublishResult{
		AssetID:       assetID,
		DestinationID: destID,
		Bucket:        bucket,
		Key:           key,
		Digest:        payload.digest,
		ContentType:   payload.contentType,
	}

	if dest.AssumeRoleArn != "" {
		role, err := cxschema.ResolveARN(dest.AssumeRoleArn, values)
		if err != nil {
			return result, fmt.Errorf("file asset %s destination %s: %w", assetID, destID, err)
		}
		slog.Debug("asset destination role", "asset", assetID, "destination", destID, "role", role.String())
	}

	exists, err := p.store.Exists(ctx, bucket, key)
	if err != nil {
		return result, fmt.Errorf("check s3://%s/%s: %w", bucket, key, err)
	}
	if exists {
		result.Skipped = true
		slog.Info("asset already published", "asset", assetID, "bucket", bucket, "key", key)
		return result, nil
	}

	size := int64(len(payload.data))
	if err := p.store.Put(ctx, bucket, key, bytes.NewReader(payload.data), size, payload.contentType); err != nil {
		return result, fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	slog.Info("asset published", "asset", assetID, "bucket", bucket, "key", key, "bytes", size, "digest", payload.digest.String())
	return result, nil
}
