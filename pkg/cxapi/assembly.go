// Package cxapi loads cloud assemblies into a typed artifact graph and
// builds new assemblies on disk.
package cxapi

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
)

type LoadOptions struct {
	SkipVersionCheck bool
	// SkipEnumCheck loads artifacts of unrecognized types as plain
	// *CloudArtifact values instead of failing.
	SkipEnumCheck bool
}

// Assembly is a loaded cloud assembly. It is not safe for concurrent use.
type Assembly struct {
	store    *manifeststore.Store
	dir      string
	manifest cxschema.AssemblyManifest
	opts     LoadOptions

	// declared holds the artifacts in manifest order, order in dependency order.
	declared []Artifact
	order    []Artifact
	byID     map[string]Artifact

	nested map[string]*Assembly
	parent *Assembly
}

// LoadAssembly reads dir/manifest.json through store and builds the artifact
// graph.
func LoadAssembly(store *manifeststore.Store, dir string, opts LoadOptions) (*Assembly, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve assembly directory: %w", err)
	}
	manifest, err := store.Load(abs, manifeststore.LoadOptions{SkipVersionCheck: opts.SkipVersionCheck})
	if err != nil {
		return nil, err
	}
	return NewAssembly(store, abs, manifest, opts)
}

// NewAssembly builds the artifact graph of an already parsed manifest. dir is
// the directory relative artifact paths resolve against.
func NewAssembly(store *manifeststore.Store, dir string, manifest cxschema.AssemblyManifest, opts LoadOptions) (*Assembly, error) {
	a := &Assembly{
		store:    store,
		dir:      dir,
		manifest: manifest,
		opts:     opts,
		byID:     make(map[string]Artifact, manifest.Artifacts.Len()),
		nested:   make(map[string]*Assembly),
	}
	if err := a.build(); err != nil {
		return nil, err
	}
	slog.Debug("assembly loaded", "dir", dir, "version", manifest.Version, "artifacts", len(a.order))
	return a, nil
}

func (a *Assembly) build() error {
	for _, id := range a.manifest.Artifacts.IDs() {
		declaration, _ := a.manifest.Artifacts.Get(id)
		artifact, err := newArtifact(a, id, declaration, a.opts)
		if err != nil {
			return err
		}
		a.declared = append(a.declared, artifact)
		a.byID[id] = artifact
	}

	for _, artifact := range a.declared {
		base := artifact.cloudArtifact()
		for _, depID := range base.DependencyIDs() {
			dep, ok := a.byID[depID]
			if !ok {
				return DanglingDependencyError{ID: base.id, Dependency: depID}
			}
			base.deps = append(base.deps, dep)
		}
	}

	order, err := topologicalSort(a.declared)
	if err != nil {
		return err
	}
	a.order = order
	return nil
}

// topologicalSort orders artifacts so that dependencies come first. Among
// artifacts that are ready at the same time the one declared first wins.
func topologicalSort(declared []Artifact) ([]Artifact, error) {
	index := make(map[string]int, len(declared))
	for i, artifact := range declared {
		index[artifact.ID()] = i
	}

	pending := make([]int, len(declared))
	dependents := make([][]int, len(declared))
	for i, artifact := range declared {
		for _, dep := range artifact.cloudArtifact().deps {
			j := index[dep.ID()]
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i, count := range pending {
		if count == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]Artifact, 0, len(declared))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, declared[next])
		for _, dependent := range dependents[next] {
			pending[dependent]--
			if pending[dependent] == 0 {
				pos, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, pos, dependent)
			}
		}
	}

	if len(order) < len(declared) {
		var stuck []string
		for i, count := range pending {
			if count > 0 {
				stuck = append(stuck, declared[i].ID())
			}
		}
		return nil, DependencyCycleError{IDs: stuck}
	}
	return order, nil
}

// TopologicalOrder yields every artifact after the artifacts it depends on,
// ties broken by declaration order. The sequence can be ranged over any
// number of times.
func (a *Assembly) TopologicalOrder() iter.Seq[Artifact] {
	return func(yield func(Artifact) bool) {
		for _, artifact := range a.order {
			if !yield(artifact) {
				return
			}
		}
	}
}

// Artifacts returns all artifacts in topological order.
func (a *Assembly) Artifacts() []Artifact {
	return slices.Collect(a.TopologicalOrder())
}

func (a *Assembly) Directory() string {
	return a.dir
}

func (a *Assembly) Version() string {
	return a.manifest.Version
}

func (a *Assembly) Manifest() cxschema.AssemblyManifest {
	return a.manifest
}

func (a *Assembly) Runtime() *cxschema.RuntimeInfo {
	return a.manifest.Runtime
}

func (a *Assembly) Missing() []cxschema.MissingContext {
	return slices.Clone(a.manifest.Missing)
}

// Parent returns the assembly this one was loaded through, or nil.
func (a *Assembly) Parent() *Assembly {
	return a.parent
}

func (a *Assembly) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(a.dir, rel)
}

func (a *Assembly) TryGetArtifact(id string) (Artifact, bool) {
	artifact, ok := a.byID[id]
	return artifact, ok
}

func (a *Assembly) GetArtifact(id string) (Artifact, error) {
	artifact, ok := a.byID[id]
	if !ok {
		return nil, ArtifactNotFoundError{ID: id}
	}
	return artifact, nil
}

func (a *Assembly) GetStackArtifact(id string) (*StackArtifact, error) {
	artifact, err := a.GetArtifact(id)
	if err != nil {
		return nil, err
	}
	stack, ok := artifact.(*StackArtifact)
	if !ok {
		return nil, ArtifactTypeError{ID: id, Want: cxschema.ArtifactTypeStack, Got: artifact.Type()}
	}
	return stack, nil
}

// GetStackByName returns the only stack whose physical name is name.
func (a *Assembly) GetStackByName(name string) (*StackArtifact, error) {
	var matches []*StackArtifact
	for _, stack := range a.Stacks() {
		if stack.StackName() == name {
			matches = append(matches, stack)
		}
	}
	switch len(matches) {
	case 0:
		return nil, StackNotFoundError{StackName: name}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, stack := range matches {
			ids[i] = stack.ID()
		}
		return nil, AmbiguousStackNameError{StackName: name, IDs: ids}
	}
}

// Stacks returns the stack artifacts of this assembly in topological order.
func (a *Assembly) Stacks() []*StackArtifact {
	return collectType[*StackArtifact](a)
}

func (a *Assembly) NestedAssemblies() []*NestedAssemblyArtifact {
	return collectType[*NestedAssemblyArtifact](a)
}

func (a *Assembly) AssetManifests() []*AssetManifestArtifact {
	return collectType[*AssetManifestArtifact](a)
}

func collectType[T Artifact](a *Assembly) []T {
	var out []T
	for artifact := range a.TopologicalOrder() {
		if typed, ok := artifact.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// StacksRecursively returns the stacks of this assembly followed by the
// stacks of every nested assembly, depth first.
func (a *Assembly) StacksRecursively() ([]*StackArtifact, error) {
	stacks := a.Stacks()
	for _, nested := range a.NestedAssemblies() {
		child, err := a.NestedAssembly(nested.ID())
		if err != nil {
			return nil, err
		}
		childStacks, err := child.StacksRecursively()
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, childStacks...)
	}
	return stacks, nil
}

// Tree returns the tree artifact, or nil when the assembly has none.
func (a *Assembly) Tree() (*TreeArtifact, error) {
	trees := collectType[*TreeArtifact](a)
	switch len(trees) {
	case 0:
		return nil, nil
	case 1:
		return trees[0], nil
	default:
		return nil, errors.New("multiple artifacts of type cdk:tree found in the assembly")
	}
}

// Messages returns the synthesis messages of every artifact.
func (a *Assembly) Messages() []SynthesisMessage {
	var out []SynthesisMessage
	for artifact := range a.TopologicalOrder() {
		out = append(out, artifact.Messages()...)
	}
	return out
}

// NestedAssembly loads the child assembly referenced by the nested assembly
// artifact id. The child is loaded with the same store and options and
// cached for the lifetime of a.
func (a *Assembly) NestedAssembly(id string) (*Assembly, error) {
	if child, ok := a.nested[id]; ok {
		return child, nil
	}
	artifact, err := a.GetArtifact(id)
	if err != nil {
		return nil, err
	}
	nested, ok := artifact.(*NestedAssemblyArtifact)
	if !ok {
		return nil, ArtifactTypeError{ID: id, Want: cxschema.ArtifactTypeNestedAssembly, Got: artifact.Type()}
	}
	child, err := LoadAssembly(a.store, nested.FullPath(), a.opts)
	if err != nil {
		return nil, fmt.Errorf("load nested assembly %s: %w", id, err)
	}
	child.parent = a
	a.nested[id] = child
	return child, nil
}
