package cxapi

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

// StackArtifact is a CloudFormation stack to deploy.
type StackArtifact struct {
	*CloudArtifact
	props       cxschema.StackProperties
	environment Environment
	template    map[string]any
}

func newStackArtifact(base *CloudArtifact) (*StackArtifact, error) {
	var props cxschema.StackProperties
	if err := base.manifest.DecodeProperties(&props); err != nil {
		return nil, InvalidArtifactError{ID: base.id, Reason: "malformed stack properties", Err: err}
	}
	if strings.TrimSpace(props.TemplateFile) == "" {
		return nil, InvalidArtifactError{ID: base.id, Reason: "templateFile is required"}
	}
	if strings.TrimSpace(base.manifest.Environment) == "" {
		return nil, InvalidArtifactError{ID: base.id, Reason: "environment is required"}
	}
	env, err := ParseEnvironment(base.manifest.Environment)
	if err != nil {
		return nil, InvalidArtifactError{ID: base.id, Reason: "malformed environment", Err: err}
	}
	return &StackArtifact{CloudArtifact: base, props: props, environment: env}, nil
}

// StackName is the physical stack name, defaulting to the artifact id.
func (s *StackArtifact) StackName() string {
	if s.props.StackName != "" {
		return s.props.StackName
	}
	return s.id
}

// OriginalName is the stack name as declared in the manifest.
func (s *StackArtifact) OriginalName() string {
	return s.StackName()
}

// DisplayName is the hierarchical id, followed by the stack name in
// parentheses when the two differ.
func (s *StackArtifact) DisplayName() string {
	name := s.StackName()
	if name == s.id {
		return s.HierarchicalID()
	}
	return fmt.Sprintf("%s (%s)", s.HierarchicalID(), name)
}

// Assets returns the aws:cdk:asset metadata entries recorded on the stack.
func (s *StackArtifact) Assets() ([]cxschema.AssetMetadataEntry, error) {
	var out []cxschema.AssetMetadataEntry
	for _, entry := range s.FindMetadataByType(cxschema.MetadataTypeAsset) {
		var asset cxschema.AssetMetadataEntry
		if err := json.Unmarshal(entry.Data, &asset); err != nil {
			return nil, InvalidArtifactError{ID: s.id, Reason: "malformed asset metadata at " + entry.Path, Err: err}
		}
		out = append(out, asset)
	}
	return out, nil
}

func (s *StackArtifact) Properties() cxschema.StackProperties {
	return s.props
}

func (s *StackArtifact) Environment() Environment {
	return s.environment
}

func (s *StackArtifact) TemplateFile() string {
	return s.props.TemplateFile
}

func (s *StackArtifact) TemplateFullPath() string {
	return s.assembly.path(s.props.TemplateFile)
}

// Template reads and decodes the stack template on first use.
func (s *StackArtifact) Template() (map[string]any, error) {
	if s.template != nil {
		return s.template, nil
	}
	path := s.TemplateFullPath()
	data, err := s.assembly.store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack template %s: %w", path, err)
	}
	var template map[string]any
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("decode stack template %s: %w", path, err)
	}
	s.template = template
	return template, nil
}

func (s *StackArtifact) Parameters() map[string]string {
	return maps.Clone(s.props.Parameters)
}

// Tags returns the stack tags from the properties, or from stack-tags
// metadata when the properties carry none.
func (s *StackArtifact) Tags() map[string]string {
	if s.props.Tags != nil {
		return maps.Clone(s.props.Tags)
	}
	tags := map[string]string{}
	for _, entry := range s.FindMetadataByType(cxschema.MetadataTypeStackTags) {
		var pairs []struct {
			Key   string `json:"Key"`
			Value string `json:"Value"`
		}
		if err := json.Unmarshal(entry.Data, &pairs); err != nil {
			continue
		}
		for _, pair := range pairs {
			tags[pair.Key] = pair.Value
		}
	}
	return tags
}

func (s *StackArtifact) TerminationProtection() bool {
	return s.props.TerminationProtection != nil && *s.props.TerminationProtection
}

func (s *StackArtifact) ValidateOnSynth() bool {
	return s.props.ValidateOnSynth != nil && *s.props.ValidateOnSynth
}

func (s *StackArtifact) AssumeRoleArn() string {
	return s.props.AssumeRoleArn
}

func (s *StackArtifact) AssumeRoleExternalID() string {
	return s.props.AssumeRoleExternalID
}

func (s *StackArtifact) CloudFormationExecutionRoleArn() string {
	return s.props.CloudFormationExecutionRoleArn
}

func (s *StackArtifact) LookupRole() *cxschema.BootstrapRole {
	if s.props.LookupRole == nil {
		return nil
	}
	role := *s.props.LookupRole
	return &role
}

// RequiresBootstrapStackVersion returns the minimum bootstrap stack version,
// if one is declared.
func (s *StackArtifact) RequiresBootstrapStackVersion() (int, bool) {
	if s.props.RequiresBootstrapStackVersion == nil {
		return 0, false
	}
	return *s.props.RequiresBootstrapStackVersion, true
}

func (s *StackArtifact) BootstrapStackVersionSsmParameter() string {
	return s.props.BootstrapStackVersionSsmParameter
}

func (s *StackArtifact) StackTemplateAssetObjectURL() string {
	return s.props.StackTemplateAssetObjectURL
}

// DeployRoles resolves the assume and execution role ARNs against the stack
// environment. Roles that are not declared are omitted from the result.
func (s *StackArtifact) DeployRoles(partition string) (map[string]arn.ARN, error) {
	values := s.environment.PlaceholderValues(partition)
	roles := map[string]string{
		"assumeRole":    s.props.AssumeRoleArn,
		"executionRole": s.props.CloudFormationExecutionRoleArn,
	}
	if s.props.LookupRole != nil {
		roles["lookupRole"] = s.props.LookupRole.Arn
	}
	out := make(map[string]arn.ARN, len(roles))
	for name, raw := range roles {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parsed, err := cxschema.ResolveARN(raw, values)
		if err != nil {
			return nil, fmt.Errorf("stack %s %s: %w", s.id, name, err)
		}
		out[name] = parsed
	}
	return out, nil
}
