package cxapi

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
)

const appManifest = `{
  "version": "21.0.0",
  "artifacts": {
    "App.assets": {
      "type": "cdk:asset-manifest",
      "properties": {"file": "App.assets.json", "requiresBootstrapStackVersion": 6}
    },
    "App": {
      "type": "aws:cloudformation:stack",
      "environment": "aws://123456789012/eu-west-1",
      "dependencies": ["App.assets"],
      "properties": {
        "templateFile": "App.template.json",
        "stackName": "app-prod",
        "parameters": {"Env": "prod"},
        "terminationProtection": true,
        "assumeRoleArn": "arn:${AWS::Partition}:iam::123456789012:role/cdk-deploy-${AWS::Region}",
        "cloudFormationExecutionRoleArn": "arn:${AWS::Partition}:iam::123456789012:role/cdk-exec",
        "lookupRole": {"arn": "arn:${AWS::Partition}:iam::123456789012:role/cdk-lookup"}
      },
      "metadata": {
        "/App/Bucket/Resource": [
          {"type": "aws:cdk:logicalId", "data": "Bucket"},
          {"type": "aws:cdk:error", "data": "bucket name is invalid"}
        ],
        "/App": [
          {"type": "aws:cdk:stack-tags", "data": [{"Key": "team", "Value": "core"}]},
          {"type": "aws:cdk:warning", "data": "careful"}
        ],
        "/App/Handler/Code": [
          {"type": "aws:cdk:asset", "data": {"packaging": "zip", "id": "abc123", "sourceHash": "abc123", "path": "asset.abc123", "s3BucketParameter": "AssetBucket", "s3KeyParameter": "AssetKey", "artifactHashParameter": "AssetHash"}}
        ],
        "/App/Image": [
          {"type": "aws:cdk:asset", "data": {"packaging": "container-image", "id": "img789", "sourceHash": "img789", "path": "asset.img789", "repositoryName": "app-images", "imageTag": "img789", "buildArgs": {"STAGE": "prod"}}}
        ]
      }
    },
    "Tree": {"type": "cdk:tree", "properties": {"file": "tree.json"}}
  }
}`

func writeAssembly(t *testing.T, files map[string]string) *manifeststore.Store {
	t.Helper()
	fs := memfs.New()
	for path, content := range files {
		require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
	}
	return manifeststore.New(fs)
}

func loadApp(t *testing.T) *Assembly {
	t.Helper()
	store := writeAssembly(t, map[string]string{
		"/asm/manifest.json":     appManifest,
		"/asm/App.template.json": `{"Resources": {"Bucket": {"Type": "AWS::S3::Bucket"}}}`,
		"/asm/tree.json":         `{"version": "tree-0.1", "tree": {"id": "App", "path": ""}}`,
		"/asm/App.assets.json":   `{"version": "21.0.0", "files": {}}`,
	})
	asm, err := LoadAssembly(store, "/asm", LoadOptions{})
	require.NoError(t, err)
	return asm
}

// manifestOf declares artifacts in the given order. deps maps an id to the
// ids it depends on.
func manifestOf(ids []string, deps map[string][]string) cxschema.AssemblyManifest {
	manifest := cxschema.AssemblyManifest{Version: cxschema.SchemaVersion}
	for _, id := range ids {
		manifest.Artifacts.Set(id, cxschema.ArtifactManifest{Type: cxschema.ArtifactTypeNone, Dependencies: deps[id]})
	}
	return manifest
}

func orderOf(asm *Assembly) []string {
	var ids []string
	for artifact := range asm.TopologicalOrder() {
		ids = append(ids, artifact.ID())
	}
	return ids
}

func TestTopologicalOrderPutsDependenciesFirst(t *testing.T) {
	deps := map[string][]string{"B": {"A"}, "C": {"A", "B"}}

	asm, err := NewAssembly(nil, "/asm", manifestOf([]string{"A", "B", "C"}, deps), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, orderOf(asm))

	reversed, err := NewAssembly(nil, "/asm", manifestOf([]string{"C", "B", "A"}, deps), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, orderOf(reversed))
}

func TestTopologicalOrderBreaksTiesByDeclarationOrder(t *testing.T) {
	asm, err := NewAssembly(nil, "/asm", manifestOf([]string{"z", "y", "x"}, nil), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, orderOf(asm))

	asm, err = NewAssembly(nil, "/asm", manifestOf([]string{"x", "y", "z", "w"}, map[string][]string{"y": {"z"}}), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z", "y", "w"}, orderOf(asm))
}

func TestTopologicalOrderIsRestartable(t *testing.T) {
	asm, err := NewAssembly(nil, "/asm", manifestOf([]string{"A", "B", "C"}, map[string][]string{"C": {"A"}}), LoadOptions{})
	require.NoError(t, err)

	first := orderOf(asm)
	assert.Equal(t, first, orderOf(asm))

	var partial []string
	for artifact := range asm.TopologicalOrder() {
		partial = append(partial, artifact.ID())
		if len(partial) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], partial)
	assert.Equal(t, first, orderOf(asm))
}

func TestTopologicalOrderRespectsEveryEdge(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for round := range 50 {
		n := 2 + r.IntN(15)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("a%02d", i)
		}
		// edges only point from higher to lower index so the graph is acyclic;
		// declaration order is shuffled independently
		deps := map[string][]string{}
		for i := 1; i < n; i++ {
			for j := 0; j < i; j++ {
				if r.IntN(3) == 0 {
					deps[ids[i]] = append(deps[ids[i]], ids[j])
				}
			}
		}
		declared := slices.Clone(ids)
		r.Shuffle(len(declared), func(i, j int) { declared[i], declared[j] = declared[j], declared[i] })

		asm, err := NewAssembly(nil, "/asm", manifestOf(declared, deps), LoadOptions{})
		require.NoError(t, err, "round %d", round)

		order := orderOf(asm)
		require.Len(t, order, n)
		position := map[string]int{}
		for i, id := range order {
			position[id] = i
		}
		require.Len(t, position, n, "every artifact exactly once")
		for id, list := range deps {
			for _, dep := range list {
				assert.Less(t, position[dep], position[id], "round %d: %s must precede %s", round, dep, id)
			}
		}
		again, err := NewAssembly(nil, "/asm", manifestOf(declared, deps), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, order, orderOf(again), "order must be deterministic")
	}
}

func TestBuildRejectsCycles(t *testing.T) {
	_, err := NewAssembly(nil, "/asm", manifestOf([]string{"A", "B"}, map[string][]string{"A": {"B"}, "B": {"A"}}), LoadOptions{})
	var cycle DependencyCycleError
	require.True(t, errors.As(err, &cycle), "expected DependencyCycleError, got %v", err)
	assert.Equal(t, []string{"A", "B"}, cycle.IDs)

	_, err = NewAssembly(nil, "/asm", manifestOf([]string{"free", "self", "after"}, map[string][]string{"self": {"self"}, "after": {"self"}}), LoadOptions{})
	require.True(t, errors.As(err, &cycle), "expected DependencyCycleError, got %v", err)
	assert.Equal(t, []string{"self", "after"}, cycle.IDs)
}

func TestBuildRejectsDanglingDependencies(t *testing.T) {
	_, err := NewAssembly(nil, "/asm", manifestOf([]string{"A"}, map[string][]string{"A": {"ghost"}}), LoadOptions{})
	var dangling DanglingDependencyError
	require.True(t, errors.As(err, &dangling), "expected DanglingDependencyError, got %v", err)
	assert.Equal(t, DanglingDependencyError{ID: "A", Dependency: "ghost"}, dangling)
}

func TestBuildDeduplicatesDependencies(t *testing.T) {
	asm, err := NewAssembly(nil, "/asm", manifestOf([]string{"A", "B"}, map[string][]string{"B": {"A", "A"}}), LoadOptions{})
	require.NoError(t, err)

	b, err := asm.GetArtifact("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, b.DependencyIDs())
	require.Len(t, b.Dependencies(), 1)
	assert.Equal(t, "A", b.Dependencies()[0].ID())
}

func TestUnknownArtifactTypes(t *testing.T) {
	manifest := cxschema.AssemblyManifest{Version: cxschema.SchemaVersion}
	manifest.Artifacts.Set("Future", cxschema.ArtifactManifest{Type: "cdk:future-thing"})

	_, err := NewAssembly(nil, "/asm", manifest, LoadOptions{})
	var unknown UnknownArtifactTypeError
	require.True(t, errors.As(err, &unknown), "expected UnknownArtifactTypeError, got %v", err)
	assert.Equal(t, cxschema.ArtifactType("cdk:future-thing"), unknown.Type)

	asm, err := NewAssembly(nil, "/asm", manifest, LoadOptions{SkipEnumCheck: true})
	require.NoError(t, err)
	artifact, err := asm.GetArtifact("Future")
	require.NoError(t, err)
	_, generic := artifact.(*CloudArtifact)
	assert.True(t, generic)
	assert.Equal(t, cxschema.ArtifactType("cdk:future-thing"), artifact.Type())
}

func TestStackRequiresEnvironmentAndTemplate(t *testing.T) {
	manifest := cxschema.AssemblyManifest{Version: cxschema.SchemaVersion}
	manifest.Artifacts.Set("Stack", cxschema.ArtifactManifest{
		Type:       cxschema.ArtifactTypeStack,
		Properties: []byte(`{"templateFile": "Stack.template.json"}`),
	})
	_, err := NewAssembly(nil, "/asm", manifest, LoadOptions{})
	var invalid InvalidArtifactError
	require.True(t, errors.As(err, &invalid), "expected InvalidArtifactError, got %v", err)
	assert.Equal(t, "environment is required", invalid.Reason)

	manifest.Artifacts.Set("Stack", cxschema.ArtifactManifest{
		Type:        cxschema.ArtifactTypeStack,
		Environment: "aws://123456789012/us-east-1",
	})
	_, err = NewAssembly(nil, "/asm", manifest, LoadOptions{})
	require.True(t, errors.As(err, &invalid), "expected InvalidArtifactError, got %v", err)
	assert.Equal(t, "templateFile is required", invalid.Reason)
}

func TestLoadAssemblySurfacesStoreErrors(t *testing.T) {
	store := writeAssembly(t, map[string]string{
		"/old/manifest.json":    `{"version": "99.0.0", "artifacts": {}}`,
		"/broken/manifest.json": `{"version": `,
	})

	_, err := LoadAssembly(store, "/missing", LoadOptions{})
	var notFound manifeststore.ManifestNotFoundError
	require.True(t, errors.As(err, &notFound), "expected ManifestNotFoundError, got %v", err)

	_, err = LoadAssembly(store, "/broken", LoadOptions{})
	var parse manifeststore.ManifestParseError
	require.True(t, errors.As(err, &parse), "expected ManifestParseError, got %v", err)

	_, err = LoadAssembly(store, "/old", LoadOptions{})
	var unsupported manifeststore.UnsupportedVersionError
	require.True(t, errors.As(err, &unsupported), "expected UnsupportedVersionError, got %v", err)

	asm, err := LoadAssembly(store, "/old", LoadOptions{SkipVersionCheck: true})
	require.NoError(t, err)
	assert.Equal(t, "99.0.0", asm.Version())
	assert.Empty(t, asm.Artifacts())
}

func TestAssemblyLookups(t *testing.T) {
	asm := loadApp(t)

	assert.Equal(t, "/asm", asm.Directory())
	assert.Equal(t, []string{"App.assets", "App", "Tree"}, orderOf(asm))

	_, err := asm.GetArtifact("Nope")
	var notFound ArtifactNotFoundError
	require.True(t, errors.As(err, &notFound), "expected ArtifactNotFoundError, got %v", err)

	_, ok := asm.TryGetArtifact("Nope")
	assert.False(t, ok)
	artifact, ok := asm.TryGetArtifact("Tree")
	require.True(t, ok)
	assert.Equal(t, cxschema.ArtifactTypeTree, artifact.Type())

	_, err = asm.GetStackArtifact("Tree")
	var wrongType ArtifactTypeError
	require.True(t, errors.As(err, &wrongType), "expected ArtifactTypeError, got %v", err)
	assert.Equal(t, cxschema.ArtifactTypeStack, wrongType.Want)

	stack, err := asm.GetStackArtifact("App")
	require.NoError(t, err)
	assert.Equal(t, "app-prod", stack.StackName())

	tree, err := asm.Tree()
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "/asm/tree.json", tree.FullPath())
	contents, err := tree.Contents()
	require.NoError(t, err)
	assert.Equal(t, "tree-0.1", contents["version"])

	manifests := asm.AssetManifests()
	require.Len(t, manifests, 1)
	version, ok := manifests[0].RequiresBootstrapStackVersion()
	assert.True(t, ok)
	assert.Equal(t, 6, version)
	assetManifest, err := manifests[0].Contents()
	require.NoError(t, err)
	assert.Equal(t, "21.0.0", assetManifest.Version)
}

func TestGetStackByName(t *testing.T) {
	manifest := cxschema.AssemblyManifest{Version: cxschema.SchemaVersion}
	stack := func(name string) cxschema.ArtifactManifest {
		props := fmt.Sprintf(`{"templateFile": "t.json", "stackName": %q}`, name)
		return cxschema.ArtifactManifest{
			Type:        cxschema.ArtifactTypeStack,
			Environment: "aws://123456789012/us-east-1",
			Properties:  []byte(props),
		}
	}
	manifest.Artifacts.Set("First", stack("Foo"))
	manifest.Artifacts.Set("Second", stack("Foo"))
	manifest.Artifacts.Set("Third", stack("Bar"))

	asm, err := NewAssembly(nil, "/asm", manifest, LoadOptions{})
	require.NoError(t, err)

	_, err = asm.GetStackByName("Foo")
	var ambiguous AmbiguousStackNameError
	require.True(t, errors.As(err, &ambiguous), "expected AmbiguousStackNameError, got %v", err)
	assert.Equal(t, []string{"First", "Second"}, ambiguous.IDs)

	_, err = asm.GetStackByName("Baz")
	var notFound StackNotFoundError
	require.True(t, errors.As(err, &notFound), "expected StackNotFoundError, got %v", err)

	found, err := asm.GetStackByName("Bar")
	require.NoError(t, err)
	assert.Equal(t, "Third", found.ID())
}

func TestStackArtifactProperties(t *testing.T) {
	asm := loadApp(t)
	stack, err := asm.GetStackByName("app-prod")
	require.NoError(t, err)

	assert.Equal(t, Environment{Account: "123456789012", Region: "eu-west-1", Name: "aws://123456789012/eu-west-1"}, stack.Environment())
	assert.Equal(t, "/asm/App.template.json", stack.TemplateFullPath())
	assert.Equal(t, map[string]string{"Env": "prod"}, stack.Parameters())
	assert.Equal(t, map[string]string{"team": "core"}, stack.Tags())
	assert.True(t, stack.TerminationProtection())
	assert.False(t, stack.ValidateOnSynth())
	_, ok := stack.RequiresBootstrapStackVersion()
	assert.False(t, ok)
	assert.Equal(t, []string{"App.assets"}, stack.DependencyIDs())

	template, err := stack.Template()
	require.NoError(t, err)
	assert.Contains(t, template["Resources"], "Bucket")

	roles, err := stack.DeployRoles("")
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "role/cdk-deploy-eu-west-1", roles["assumeRole"].Resource)
	assert.Equal(t, "aws", roles["executionRole"].Partition)
	assert.Equal(t, "123456789012", roles["lookupRole"].AccountID)

	govRoles, err := stack.DeployRoles("aws-us-gov")
	require.NoError(t, err)
	assert.Equal(t, "aws-us-gov", govRoles["assumeRole"].Partition)
}

func TestStackDisplayNameAndAssets(t *testing.T) {
	asm := loadApp(t)
	stack, err := asm.GetStackArtifact("App")
	require.NoError(t, err)

	assert.Equal(t, "App (app-prod)", stack.DisplayName())
	assert.Equal(t, "app-prod", stack.OriginalName())

	assets, err := stack.Assets()
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "abc123", assets[0].ID)
	assert.Equal(t, "AssetBucket", assets[0].S3BucketParameter)
	assert.False(t, assets[0].IsContainerImage())
	assert.Equal(t, "img789", assets[1].ID)
	assert.True(t, assets[1].IsContainerImage())
	assert.Equal(t, map[string]string{"STAGE": "prod"}, assets[1].BuildArgs)
}

func TestStackDisplayNameWithoutExplicitName(t *testing.T) {
	store := writeAssembly(t, map[string]string{
		"/asm/manifest.json": `{
  "version": "21.0.0",
  "artifacts": {
    "Plain": {
      "type": "aws:cloudformation:stack",
      "environment": "aws://123456789012/us-east-1",
      "properties": {"templateFile": "Plain.template.json"}
    },
    "Same": {
      "type": "aws:cloudformation:stack",
      "environment": "aws://123456789012/us-east-1",
      "displayName": "Stage/Same",
      "properties": {"templateFile": "Same.template.json", "stackName": "Same"}
    },
    "Broken": {
      "type": "aws:cloudformation:stack",
      "environment": "aws://123456789012/us-east-1",
      "properties": {"templateFile": "Broken.template.json"},
      "metadata": {"/Broken": [{"type": "aws:cdk:asset", "data": "not an object"}]}
    }
  }
}`,
	})
	asm, err := LoadAssembly(store, "/asm", LoadOptions{})
	require.NoError(t, err)

	plain, err := asm.GetStackArtifact("Plain")
	require.NoError(t, err)
	assert.Equal(t, "Plain", plain.DisplayName())
	assets, err := plain.Assets()
	require.NoError(t, err)
	assert.Empty(t, assets)

	same, err := asm.GetStackArtifact("Same")
	require.NoError(t, err)
	assert.Equal(t, "Stage/Same", same.DisplayName())
	assert.Equal(t, "Same", same.OriginalName())

	broken, err := asm.GetStackArtifact("Broken")
	require.NoError(t, err)
	_, err = broken.Assets()
	var invalid InvalidArtifactError
	require.True(t, errors.As(err, &invalid), "expected InvalidArtifactError, got %v", err)
}

func TestMessagesAndMetadata(t *testing.T) {
	asm := loadApp(t)
	stack, err := asm.GetStackArtifact("App")
	require.NoError(t, err)

	messages := stack.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "/App", messages[0].ID)
	assert.Equal(t, MessageLevelWarning, messages[0].Level)
	assert.Equal(t, "careful", messages[0].Text())
	assert.Equal(t, "/App/Bucket/Resource", messages[1].ID)
	assert.Equal(t, MessageLevelError, messages[1].Level)
	assert.Equal(t, "bucket name is invalid", messages[1].Text())
	assert.Equal(t, messages, asm.Messages())

	logicalIDs := stack.FindMetadataByType(cxschema.MetadataTypeLogicalID)
	require.Len(t, logicalIDs, 1)
	assert.Equal(t, "/App/Bucket/Resource", logicalIDs[0].Path)
	assert.JSONEq(t, `"Bucket"`, string(logicalIDs[0].Data))
}

func TestNestedAssemblyRequiresNestedArtifact(t *testing.T) {
	asm := loadApp(t)

	_, err := asm.NestedAssembly("App")
	var wrongType ArtifactTypeError
	require.True(t, errors.As(err, &wrongType), "expected ArtifactTypeError, got %v", err)
	assert.Equal(t, cxschema.ArtifactTypeNestedAssembly, wrongType.Want)

	_, err = asm.NestedAssembly("Nope")
	var notFound ArtifactNotFoundError
	require.True(t, errors.As(err, &notFound), "expected ArtifactNotFoundError, got %v", err)
}
