package plan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/poruru-code/cxassembly/pkg/cxapi"
	"github.com/poruru-code/cxassembly/pkg/cxschema"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
)

// Synthesize writes p as an assembly in outdir and returns it loaded.
func Synthesize(store *manifeststore.Store, outdir string, p Plan, opts cxapi.LoadOptions) (*cxapi.Assembly, error) {
	builder, err := cxapi.NewBuilder(store, outdir, cxapi.BuilderOptions{
		Runtime: p.runtimeInfo(),
		Load:    opts,
	})
	if err != nil {
		return nil, err
	}
	if err := Apply(p, builder); err != nil {
		return nil, err
	}
	return builder.BuildAssembly()
}

// Apply adds the missing context, artifacts and files of p to b. Nested
// assemblies are declared after the artifacts and built immediately, so b
// itself still has to be built by the caller. Nested plans inherit the
// runtime of b.
func Apply(p Plan, b *cxapi.Builder) error {
	for _, missing := range p.Missing {
		b.AddMissingContext(missing.Key, missing.Provider, propsMap(missing.Props))
	}

	for _, artifact := range p.Artifacts {
		manifest, err := artifact.manifest()
		if err != nil {
			return fmt.Errorf("artifact %s: %w", artifact.ID, err)
		}
		if err := b.AddArtifact(artifact.ID, manifest); err != nil {
			return err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Files)) {
		data, err := fileContent(p.Files[name])
		if err != nil {
			return fmt.Errorf("file %s: %w", name, err)
		}
		if err := b.WriteFile(name, data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	for _, nested := range p.Nested {
		child, err := b.CreateNestedAssembly(nested.ID, nested.DisplayName)
		if err != nil {
			return err
		}
		if err := Apply(nested.Plan, child); err != nil {
			return fmt.Errorf("nested assembly %s: %w", nested.ID, err)
		}
		if _, err := child.BuildAssembly(); err != nil {
			return fmt.Errorf("nested assembly %s: %w", nested.ID, err)
		}
		slog.Debug("nested assembly synthesized", "id", nested.ID, "dir", child.Outdir())
	}
	return nil
}

func (p Plan) runtimeInfo() *cxschema.RuntimeInfo {
	if p.Runtime == nil {
		return nil
	}
	return &cxschema.RuntimeInfo{Libraries: maps.Clone(p.Runtime.Libraries)}
}

func (a Artifact) manifest() (cxschema.ArtifactManifest, error) {
	manifest := cxschema.ArtifactManifest{
		Type:         cxschema.ArtifactType(a.Type),
		Environment:  a.Environment,
		Dependencies: a.Dependencies,
		DisplayName:  a.DisplayName,
	}
	if a.Properties != nil {
		props, err := json.Marshal(Normalize(a.Properties))
		if err != nil {
			return cxschema.ArtifactManifest{}, fmt.Errorf("encode properties: %w", err)
		}
		manifest.Properties = props
	}
	if len(a.Metadata) > 0 {
		manifest.Metadata = make(map[string][]cxschema.MetadataEntry, len(a.Metadata))
		for path, entries := range a.Metadata {
			out := make([]cxschema.MetadataEntry, 0, len(entries))
			for _, entry := range entries {
				converted := cxschema.MetadataEntry{Type: entry.Type, Trace: entry.Trace}
				if entry.Data != nil {
					data, err := json.Marshal(Normalize(entry.Data))
					if err != nil {
						return cxschema.ArtifactManifest{}, fmt.Errorf("encode metadata %s: %w", path, err)
					}
					converted.Data = data
				}
				out = append(out, converted)
			}
			manifest.Metadata[path] = out
		}
	}
	return manifest, nil
}

func propsMap(value any) map[string]any {
	if value == nil {
		return nil
	}
	return AsMap(Normalize(value))
}

// fileContent returns strings verbatim and encodes anything else as JSON.
func fileContent(value any) ([]byte, error) {
	if text, ok := value.(string); ok {
		return []byte(text), nil
	}
	data, err := json.MarshalIndent(Normalize(value), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
