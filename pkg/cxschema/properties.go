package cxschema

// StackProperties are the properties of an aws:cloudformation:stack artifact.
type StackProperties struct {
	TemplateFile                      string            `json:"templateFile"`
	Parameters                        map[string]string `json:"parameters,omitempty"`
	Tags                              map[string]string `json:"tags,omitempty"`
	StackName                         string            `json:"stackName,omitempty"`
	TerminationProtection             *bool             `json:"terminationProtection,omitempty"`
	AssumeRoleArn                     string            `json:"assumeRoleArn,omitempty"`
	AssumeRoleExternalID              string            `json:"assumeRoleExternalId,omitempty"`
	CloudFormationExecutionRoleArn    string            `json:"cloudFormationExecutionRoleArn,omitempty"`
	LookupRole                        *BootstrapRole    `json:"lookupRole,omitempty"`
	StackTemplateAssetObjectURL       string            `json:"stackTemplateAssetObjectUrl,omitempty"`
	RequiresBootstrapStackVersion     *int              `json:"requiresBootstrapStackVersion,omitempty"`
	BootstrapStackVersionSsmParameter string            `json:"bootstrapStackVersionSsmParameter,omitempty"`
	ValidateOnSynth                   *bool             `json:"validateOnSynth,omitempty"`
}

// BootstrapRole is a role the deployment tooling assumes for lookups.
type BootstrapRole struct {
	Arn                               string `json:"arn"`
	AssumeRoleExternalID              string `json:"assumeRoleExternalId,omitempty"`
	RequiresBootstrapStackVersion     *int   `json:"requiresBootstrapStackVersion,omitempty"`
	BootstrapStackVersionSsmParameter string `json:"bootstrapStackVersionSsmParameter,omitempty"`
}

type AssetManifestProperties struct {
	File                              string `json:"file"`
	RequiresBootstrapStackVersion     *int   `json:"requiresBootstrapStackVersion,omitempty"`
	BootstrapStackVersionSsmParameter string `json:"bootstrapStackVersionSsmParameter,omitempty"`
}

type TreeProperties struct {
	File string `json:"file"`
}

type NestedAssemblyProperties struct {
	DirectoryName string `json:"directoryName"`
	DisplayName   string `json:"displayName,omitempty"`
}

// Metadata entry types recognized as synthesis messages.
const (
	MetadataTypeInfo      = "aws:cdk:info"
	MetadataTypeWarning   = "aws:cdk:warning"
	MetadataTypeError     = "aws:cdk:error"
	MetadataTypeLogicalID = "aws:cdk:logicalId"
	MetadataTypeStackTags = "aws:cdk:stack-tags"
	MetadataTypeAsset     = "aws:cdk:asset"
)

// AssetPackagingContainerImage marks an asset metadata entry that describes a
// container image rather than a file or zip archive.
const AssetPackagingContainerImage = "container-image"

// AssetMetadataEntry is the data of an aws:cdk:asset metadata entry. File
// assets fill the S3 parameter fields, container images the image fields.
type AssetMetadataEntry struct {
	Packaging  string `json:"packaging"`
	ID         string `json:"id"`
	SourceHash string `json:"sourceHash"`
	Path       string `json:"path"`

	S3BucketParameter     string `json:"s3BucketParameter,omitempty"`
	S3KeyParameter        string `json:"s3KeyParameter,omitempty"`
	ArtifactHashParameter string `json:"artifactHashParameter,omitempty"`

	ImageNameParameter string            `json:"imageNameParameter,omitempty"`
	RepositoryName     string            `json:"repositoryName,omitempty"`
	ImageTag           string            `json:"imageTag,omitempty"`
	BuildArgs          map[string]string `json:"buildArgs,omitempty"`
	Target             string            `json:"target,omitempty"`
	File               string            `json:"file,omitempty"`
	Platform           string            `json:"platform,omitempty"`
	NetworkMode        string            `json:"networkMode,omitempty"`
}

func (e AssetMetadataEntry) IsContainerImage() bool {
	return e.Packaging == AssetPackagingContainerImage
}
