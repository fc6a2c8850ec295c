package cxapi

import (
	"strings"

	"github.com/poruru-code/cxassembly/pkg/assets"
	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

// AssetManifestArtifact points at the asset manifest a stack needs published
// before it can be deployed.
type AssetManifestArtifact struct {
	*CloudArtifact
	props cxschema.AssetManifestProperties
}

func newAssetManifestArtifact(base *CloudArtifact) (*AssetManifestArtifact, error) {
	var props cxschema.AssetManifestProperties
	if err := base.manifest.DecodeProperties(&props); err != nil {
		return nil, InvalidArtifactError{ID: base.id, Reason: "malformed asset manifest properties", Err: err}
	}
	if strings.TrimSpace(props.File) == "" {
		return nil, InvalidArtifactError{ID: base.id, Reason: "file is required"}
	}
	return &AssetManifestArtifact{CloudArtifact: base, props: props}, nil
}

func (a *AssetManifestArtifact) File() string {
	return a.props.File
}

func (a *AssetManifestArtifact) FullPath() string {
	return a.assembly.path(a.props.File)
}

func (a *AssetManifestArtifact) RequiresBootstrapStackVersion() (int, bool) {
	if a.props.RequiresBootstrapStackVersion == nil {
		return 0, false
	}
	return *a.props.RequiresBootstrapStackVersion, true
}

func (a *AssetManifestArtifact) BootstrapStackVersionSsmParameter() string {
	return a.props.BootstrapStackVersionSsmParameter
}

// Contents reads the referenced asset manifest.
func (a *AssetManifestArtifact) Contents() (assets.Manifest, error) {
	return assets.Read(a.assembly.store, a.FullPath())
}
