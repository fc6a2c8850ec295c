package cxapi

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
)

type BuilderOptions struct {
	// AssetOutdir is where assets are staged. Defaults to the builder outdir.
	AssetOutdir string
	Runtime     *cxschema.RuntimeInfo
	Parent      *Builder
	// Load is used when BuildAssembly reads the written assembly back.
	Load LoadOptions
}

// Builder accumulates artifact declarations and writes them out as an
// assembly. It is not safe for concurrent use.
type Builder struct {
	store       *manifeststore.Store
	outdir      string
	assetOutdir string
	runtime     *cxschema.RuntimeInfo
	parent      *Builder
	load        LoadOptions

	artifacts cxschema.Artifacts
	missing   map[string]cxschema.MissingContext
}

// NewBuilder creates outdir when needed and returns an empty builder rooted
// at it.
func NewBuilder(store *manifeststore.Store, outdir string, opts BuilderOptions) (*Builder, error) {
	if strings.TrimSpace(outdir) == "" {
		return nil, fmt.Errorf("builder output directory is required")
	}
	abs, err := filepath.Abs(outdir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	exists, err := store.Exists(abs)
	if err != nil {
		return nil, err
	}
	if exists {
		info, err := store.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s must be a directory", abs)
		}
	}
	if err := store.MkdirAll(abs); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	assetOutdir := abs
	if strings.TrimSpace(opts.AssetOutdir) != "" {
		if assetOutdir, err = filepath.Abs(opts.AssetOutdir); err != nil {
			return nil, fmt.Errorf("resolve asset output directory: %w", err)
		}
	}
	return &Builder{
		store:       store,
		outdir:      abs,
		assetOutdir: assetOutdir,
		runtime:     opts.Runtime,
		parent:      opts.Parent,
		load:        opts.Load,
		missing:     make(map[string]cxschema.MissingContext),
	}, nil
}

func (b *Builder) Outdir() string {
	return b.outdir
}

func (b *Builder) AssetOutdir() string {
	return b.assetOutdir
}

func (b *Builder) Parent() *Builder {
	return b.parent
}

// AddArtifact declares an artifact. Each id can be added once.
func (b *Builder) AddArtifact(id string, manifest cxschema.ArtifactManifest) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("artifact id is required")
	}
	if _, ok := b.artifacts.Get(id); ok {
		return DuplicateArtifactIDError{ID: id}
	}
	b.artifacts.Set(id, manifest)
	return nil
}

// AddMissingContext records a context lookup that still has to be resolved.
// A later entry with the same key replaces the earlier one.
func (b *Builder) AddMissingContext(key, provider string, props map[string]any) {
	b.missing[key] = cxschema.MissingContext{Key: key, Provider: provider, Props: props}
}

// CreateNestedAssembly declares a nested assembly artifact and returns a
// builder for its contents in outdir/artifactID. The artifact is only
// declared once the child directory exists.
func (b *Builder) CreateNestedAssembly(artifactID, displayName string) (*Builder, error) {
	if !isDirectoryName(artifactID) {
		return nil, InvalidArtifactError{ID: artifactID, Reason: "nested assembly id must be a single directory name"}
	}
	if _, ok := b.artifacts.Get(artifactID); ok {
		return nil, DuplicateArtifactIDError{ID: artifactID}
	}
	props, err := cxschema.EncodeProperties(cxschema.NestedAssemblyProperties{
		DirectoryName: artifactID,
		DisplayName:   displayName,
	})
	if err != nil {
		return nil, err
	}
	child, err := NewBuilder(b.store, filepath.Join(b.outdir, artifactID), BuilderOptions{
		AssetOutdir: b.assetOutdir,
		Runtime:     b.runtime,
		Parent:      b,
		Load:        b.load,
	})
	if err != nil {
		return nil, err
	}
	if err := b.AddArtifact(artifactID, cxschema.ArtifactManifest{
		Type:       cxschema.ArtifactTypeNestedAssembly,
		Properties: props,
	}); err != nil {
		return nil, err
	}
	return child, nil
}

func isDirectoryName(name string) bool {
	if strings.TrimSpace(name) == "" || !filepath.IsLocal(name) {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && name != "."
}

// WriteFile writes an artifact payload, such as a template, to rel inside the
// output directory.
func (b *Builder) WriteFile(rel string, data []byte) error {
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("%s is outside the output directory", rel)
	}
	return b.store.WriteFile(filepath.Join(b.outdir, rel), data)
}

// BuildAssembly writes the manifest and loads it back.
func (b *Builder) BuildAssembly() (*Assembly, error) {
	manifest := cxschema.AssemblyManifest{
		Version:   cxschema.SchemaVersion,
		Artifacts: b.artifacts,
		Runtime:   b.runtime,
	}
	for _, key := range slices.Sorted(maps.Keys(b.missing)) {
		manifest.Missing = append(manifest.Missing, b.missing[key])
	}

	if err := b.store.Save(b.outdir, manifest); err != nil {
		return nil, err
	}
	slog.Debug("assembly built", "dir", b.outdir, "artifacts", manifest.Artifacts.Len(), "missing", len(manifest.Missing))
	return LoadAssembly(b.store, b.outdir, b.load)
}

// Delete removes the output directory and everything in it.
func (b *Builder) Delete() error {
	return b.store.RemoveAll(b.outdir)
}
