package cxapi

import (
	"strings"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

// NestedAssemblyArtifact references a child assembly in a subdirectory.
type NestedAssemblyArtifact struct {
	*CloudArtifact
	props cxschema.NestedAssemblyProperties
}

func newNestedAssemblyArtifact(base *CloudArtifact) (*NestedAssemblyArtifact, error) {
	var props cxschema.NestedAssemblyProperties
	if err := base.manifest.DecodeProperties(&props); err != nil {
		return nil, InvalidArtifactError{ID: base.id, Reason: "malformed nested assembly properties", Err: err}
	}
	if strings.TrimSpace(props.DirectoryName) == "" {
		return nil, InvalidArtifactError{ID: base.id, Reason: "directoryName is required"}
	}
	return &NestedAssemblyArtifact{CloudArtifact: base, props: props}, nil
}

func (n *NestedAssemblyArtifact) DirectoryName() string {
	return n.props.DirectoryName
}

// DisplayName prefers the name recorded in the properties.
func (n *NestedAssemblyArtifact) DisplayName() string {
	if n.props.DisplayName != "" {
		return n.props.DisplayName
	}
	return n.CloudArtifact.DisplayName()
}

func (n *NestedAssemblyArtifact) FullPath() string {
	return n.assembly.path(n.props.DirectoryName)
}

// NestedAssembly loads the child assembly on first use.
func (n *NestedAssemblyArtifact) NestedAssembly() (*Assembly, error) {
	return n.assembly.NestedAssembly(n.id)
}
