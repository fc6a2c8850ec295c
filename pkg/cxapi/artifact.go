package cxapi

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

// Artifact is one entry of an assembly. The concrete value is one of
// *StackArtifact, *AssetManifestArtifact, *TreeArtifact,
// *NestedAssemblyArtifact or, for "none" and unrecognized types,
// *CloudArtifact.
type Artifact interface {
	ID() string
	Type() cxschema.ArtifactType
	Manifest() cxschema.ArtifactManifest
	DisplayName() string
	HierarchicalID() string
	DependencyIDs() []string
	Dependencies() []Artifact
	Metadata() map[string][]cxschema.MetadataEntry
	FindMetadataByType(metadataType string) []MetadataEntryResult
	Messages() []SynthesisMessage
	Assembly() *Assembly

	cloudArtifact() *CloudArtifact
}

// CloudArtifact holds the fields shared by every artifact type.
type CloudArtifact struct {
	id       string
	manifest cxschema.ArtifactManifest
	assembly *Assembly
	deps     []Artifact
}

func newCloudArtifact(assembly *Assembly, id string, manifest cxschema.ArtifactManifest) *CloudArtifact {
	return &CloudArtifact{id: id, manifest: manifest, assembly: assembly}
}

func (a *CloudArtifact) ID() string {
	return a.id
}

func (a *CloudArtifact) Type() cxschema.ArtifactType {
	return a.manifest.Type
}

func (a *CloudArtifact) Manifest() cxschema.ArtifactManifest {
	return a.manifest
}

func (a *CloudArtifact) DisplayName() string {
	return a.HierarchicalID()
}

// HierarchicalID is the construct path the artifact was synthesized from,
// falling back to the artifact id.
func (a *CloudArtifact) HierarchicalID() string {
	if a.manifest.DisplayName != "" {
		return a.manifest.DisplayName
	}
	return a.id
}

// DependencyIDs returns the declared dependency ids without duplicates.
func (a *CloudArtifact) DependencyIDs() []string {
	out := make([]string, 0, len(a.manifest.Dependencies))
	for _, dep := range a.manifest.Dependencies {
		if !slices.Contains(out, dep) {
			out = append(out, dep)
		}
	}
	return out
}

func (a *CloudArtifact) Dependencies() []Artifact {
	return slices.Clone(a.deps)
}

func (a *CloudArtifact) Metadata() map[string][]cxschema.MetadataEntry {
	return a.manifest.Metadata
}

func (a *CloudArtifact) Assembly() *Assembly {
	return a.assembly
}

func (a *CloudArtifact) cloudArtifact() *CloudArtifact {
	return a
}

// MetadataEntryResult is a metadata entry together with the construct path
// it was recorded under.
type MetadataEntryResult struct {
	cxschema.MetadataEntry
	Path string
}

// FindMetadataByType returns every entry of the given type, ordered by path
// and then by position within the path.
func (a *CloudArtifact) FindMetadataByType(metadataType string) []MetadataEntryResult {
	var out []MetadataEntryResult
	for _, path := range a.metadataPaths() {
		for _, entry := range a.manifest.Metadata[path] {
			if entry.Type == metadataType {
				out = append(out, MetadataEntryResult{MetadataEntry: entry, Path: path})
			}
		}
	}
	return out
}

func (a *CloudArtifact) metadataPaths() []string {
	paths := make([]string, 0, len(a.manifest.Metadata))
	for path := range a.manifest.Metadata {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

type MessageLevel string

const (
	MessageLevelInfo    MessageLevel = "info"
	MessageLevelWarning MessageLevel = "warning"
	MessageLevelError   MessageLevel = "error"
)

// SynthesisMessage is an info, warning or error recorded in artifact metadata.
type SynthesisMessage struct {
	// ID is the construct path the message is attached to.
	ID    string
	Level MessageLevel
	Entry cxschema.MetadataEntry
}

// Text returns the message data when it is a JSON string, and the raw JSON
// otherwise.
func (m SynthesisMessage) Text() string {
	var text string
	if err := json.Unmarshal(m.Entry.Data, &text); err == nil {
		return text
	}
	return string(m.Entry.Data)
}

func (a *CloudArtifact) Messages() []SynthesisMessage {
	var out []SynthesisMessage
	for _, path := range a.metadataPaths() {
		for _, entry := range a.manifest.Metadata[path] {
			level, ok := messageLevel(entry.Type)
			if !ok {
				continue
			}
			out = append(out, SynthesisMessage{ID: path, Level: level, Entry: entry})
		}
	}
	return out
}

func messageLevel(metadataType string) (MessageLevel, bool) {
	switch metadataType {
	case cxschema.MetadataTypeInfo:
		return MessageLevelInfo, true
	case cxschema.MetadataTypeWarning:
		return MessageLevelWarning, true
	case cxschema.MetadataTypeError:
		return MessageLevelError, true
	default:
		return "", false
	}
}

// newArtifact constructs the variant matching the declared type.
func newArtifact(assembly *Assembly, id string, manifest cxschema.ArtifactManifest, opts LoadOptions) (Artifact, error) {
	base := newCloudArtifact(assembly, id, manifest)
	switch manifest.Type {
	case cxschema.ArtifactTypeStack:
		return newStackArtifact(base)
	case cxschema.ArtifactTypeAssetManifest:
		return newAssetManifestArtifact(base)
	case cxschema.ArtifactTypeTree:
		return newTreeArtifact(base)
	case cxschema.ArtifactTypeNestedAssembly:
		return newNestedAssemblyArtifact(base)
	case cxschema.ArtifactTypeNone:
		return base, nil
	default:
		if !opts.SkipEnumCheck {
			return nil, UnknownArtifactTypeError{ID: id, Type: manifest.Type}
		}
		return base, nil
	}
}
