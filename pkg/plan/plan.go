// Package plan describes an assembly as a YAML document and synthesizes it
// through a cxapi.Builder.
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is the YAML form of an assembly.
//
//	runtime:
//	  libraries: {aws-cdk-lib: 2.150.0}
//	missing:
//	  - key: availability-zones:account=123456789012:region=us-east-1
//	    provider: availability-zones
//	artifacts:
//	  - id: App
//	    type: aws:cloudformation:stack
//	    environment: aws://123456789012/us-east-1
//	    properties: {templateFile: App.template.json}
//	files:
//	  App.template.json: {Resources: {}}
//	nested:
//	  - id: assembly-Prod
//	    displayName: Prod
//	    artifacts: []
type Plan struct {
	Runtime   *Runtime         `yaml:"runtime,omitempty"`
	Missing   []MissingContext `yaml:"missing,omitempty"`
	Artifacts []Artifact       `yaml:"artifacts,omitempty"`
	Files     map[string]any   `yaml:"files,omitempty"`
	Nested    []NestedAssembly `yaml:"nested,omitempty"`
}

type Runtime struct {
	Libraries map[string]string `yaml:"libraries,omitempty"`
}

type MissingContext struct {
	Key      string `yaml:"key"`
	Provider string `yaml:"provider"`
	Props    any    `yaml:"props,omitempty"`
}

type Artifact struct {
	ID           string                     `yaml:"id"`
	Type         string                     `yaml:"type"`
	Environment  string                     `yaml:"environment,omitempty"`
	Dependencies []string                   `yaml:"dependencies,omitempty"`
	DisplayName  string                     `yaml:"displayName,omitempty"`
	Properties   any                        `yaml:"properties,omitempty"`
	Metadata     map[string][]MetadataEntry `yaml:"metadata,omitempty"`
}

type MetadataEntry struct {
	Type  string   `yaml:"type"`
	Data  any      `yaml:"data,omitempty"`
	Trace []string `yaml:"trace,omitempty"`
}

// NestedAssembly is a child assembly written to a subdirectory named after
// its id.
type NestedAssembly struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"displayName,omitempty"`

	Plan `yaml:",inline"`
}

// Decode reads one plan document. Unknown keys are rejected.
func Decode(r io.Reader) (Plan, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var p Plan
	if err := decoder.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Plan{}, fmt.Errorf("plan is empty")
		}
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func ReadFile(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return Plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the fields the builder cannot check itself.
func (p Plan) Validate() error {
	return p.validate("")
}

func (p Plan) validate(prefix string) error {
	for i, missing := range p.Missing {
		if strings.TrimSpace(missing.Key) == "" {
			return fmt.Errorf("%smissing[%d].key is required", prefix, i)
		}
		if strings.TrimSpace(missing.Provider) == "" {
			return fmt.Errorf("%smissing[%d].provider is required", prefix, i)
		}
	}
	for i, artifact := range p.Artifacts {
		if strings.TrimSpace(artifact.ID) == "" {
			return fmt.Errorf("%sartifacts[%d].id is required", prefix, i)
		}
		if strings.TrimSpace(artifact.Type) == "" {
			return fmt.Errorf("%sartifacts[%d].type is required", prefix, i)
		}
	}
	for name := range p.Files {
		if err := checkRelativePath(name); err != nil {
			return fmt.Errorf("%sfiles[%s]: %w", prefix, name, err)
		}
	}
	for i, nested := range p.Nested {
		if strings.TrimSpace(nested.ID) == "" {
			return fmt.Errorf("%snested[%d].id is required", prefix, i)
		}
		if strings.Contains(nested.ID, "/") || nested.ID == "." || nested.ID == ".." {
			return fmt.Errorf("%snested[%d].id %q cannot be used as a directory name", prefix, i, nested.ID)
		}
		if err := nested.validate(fmt.Sprintf("%snested[%s].", prefix, nested.ID)); err != nil {
			return err
		}
	}
	return nil
}

func checkRelativePath(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("path is required")
	}
	if strings.HasPrefix(name, "/") {
		return errors.New("path must be relative")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return errors.New("path must stay inside the assembly directory")
		}
	}
	return nil
}
