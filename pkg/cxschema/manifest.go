// Package cxschema defines the on-disk shape of a cloud assembly manifest.
package cxschema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ManifestFileName is the manifest file inside every assembly directory.
const ManifestFileName = "manifest.json"

type ArtifactType string

const (
	ArtifactTypeNone           ArtifactType = "none"
	ArtifactTypeStack          ArtifactType = "aws:cloudformation:stack"
	ArtifactTypeAssetManifest  ArtifactType = "cdk:asset-manifest"
	ArtifactTypeTree           ArtifactType = "cdk:tree"
	ArtifactTypeNestedAssembly ArtifactType = "cdk:cloud-assembly"
)

// Known reports whether t is one of the artifact types this package models.
func (t ArtifactType) Known() bool {
	switch t {
	case ArtifactTypeNone, ArtifactTypeStack, ArtifactTypeAssetManifest, ArtifactTypeTree, ArtifactTypeNestedAssembly:
		return true
	default:
		return false
	}
}

type AssemblyManifest struct {
	Version   string           `json:"version"`
	Artifacts Artifacts        `json:"artifacts"`
	Missing   []MissingContext `json:"missingContext,omitempty"`
	Runtime   *RuntimeInfo     `json:"runtime,omitempty"`
}

type ArtifactManifest struct {
	Type         ArtifactType               `json:"type"`
	Environment  string                     `json:"environment,omitempty"`
	Dependencies []string                   `json:"dependencies,omitempty"`
	DisplayName  string                     `json:"displayName,omitempty"`
	Metadata     map[string][]MetadataEntry `json:"metadata,omitempty"`
	Properties   json.RawMessage            `json:"properties,omitempty"`
}

// DecodeProperties unmarshals the type-specific properties into out.
// Absent properties leave out untouched.
func (m ArtifactManifest) DecodeProperties(out any) error {
	if len(bytes.TrimSpace(m.Properties)) == 0 || bytes.Equal(bytes.TrimSpace(m.Properties), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(m.Properties, out); err != nil {
		return fmt.Errorf("decode %s properties: %w", m.Type, err)
	}
	return nil
}

// EncodeProperties marshals a properties struct into the raw form stored on
// an ArtifactManifest.
func EncodeProperties(props any) (json.RawMessage, error) {
	if props == nil {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode artifact properties: %w", err)
	}
	return json.RawMessage(data), nil
}

type MetadataEntry struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Trace []string        `json:"trace,omitempty"`
}

// MissingContext is a context lookup the synthesizer could not resolve.
type MissingContext struct {
	Key      string         `json:"key"`
	Provider string         `json:"provider"`
	Props    map[string]any `json:"props,omitempty"`
}

type RuntimeInfo struct {
	Libraries map[string]string `json:"libraries,omitempty"`
}

// Artifacts is the artifact table of a manifest. Iteration follows the order
// in which artifacts were declared in the source document, which is also the
// order they are written back out in.
type Artifacts struct {
	ids  []string
	byID map[string]ArtifactManifest
}

func (a Artifacts) Len() int {
	return len(a.ids)
}

// IDs returns the artifact ids in declaration order.
func (a Artifacts) IDs() []string {
	return append([]string(nil), a.ids...)
}

func (a Artifacts) Get(id string) (ArtifactManifest, bool) {
	m, ok := a.byID[id]
	return m, ok
}

// Set stores m under id. A new id is appended to the declaration order; an
// existing id keeps its position.
func (a *Artifacts) Set(id string, m ArtifactManifest) {
	if a.byID == nil {
		a.byID = make(map[string]ArtifactManifest)
	}
	if _, ok := a.byID[id]; !ok {
		a.ids = append(a.ids, id)
	}
	a.byID[id] = m
}

func (a Artifacts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range a.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(a.byID[id])
		if err != nil {
			return nil, fmt.Errorf("encode artifact %q: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Artifacts) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	tok, err := decoder.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = Artifacts{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("artifacts must be a JSON object")
	}

	out := Artifacts{byID: make(map[string]ArtifactManifest)}
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("artifacts: unexpected key token %v", tok)
		}
		var entry ArtifactManifest
		if err := decoder.Decode(&entry); err != nil {
			return fmt.Errorf("artifact %q: %w", id, err)
		}
		out.Set(id, entry)
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}
