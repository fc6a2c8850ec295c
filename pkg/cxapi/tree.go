package cxapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

// TreeArtifact references the construct tree file of the app.
type TreeArtifact struct {
	*CloudArtifact
	props cxschema.TreeProperties
}

func newTreeArtifact(base *CloudArtifact) (*TreeArtifact, error) {
	var props cxschema.TreeProperties
	if err := base.manifest.DecodeProperties(&props); err != nil {
		return nil, InvalidArtifactError{ID: base.id, Reason: "malformed tree properties", Err: err}
	}
	if strings.TrimSpace(props.File) == "" {
		return nil, InvalidArtifactError{ID: base.id, Reason: "file is required"}
	}
	return &TreeArtifact{CloudArtifact: base, props: props}, nil
}

func (t *TreeArtifact) File() string {
	return t.props.File
}

func (t *TreeArtifact) FullPath() string {
	return t.assembly.path(t.props.File)
}

// Contents decodes the tree file.
func (t *TreeArtifact) Contents() (map[string]any, error) {
	path := t.FullPath()
	data, err := t.assembly.store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", path, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", path, err)
	}
	return tree, nil
}
