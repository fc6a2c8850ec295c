package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/poruru-code/cxassembly/internal/config"
	"github.com/poruru-code/cxassembly/pkg/assets"
	"github.com/poruru-code/cxassembly/pkg/cxapi"
	"github.com/poruru-code/cxassembly/pkg/cxschema"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
	"github.com/poruru-code/cxassembly/pkg/plan"
)

type artifactSummary struct {
	Assembly     string   `json:"assembly,omitempty" yaml:"assembly,omitempty"`
	ID           string   `json:"id" yaml:"id"`
	Type         string   `json:"type" yaml:"type"`
	DisplayName  string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	StackName    string   `json:"stackName,omitempty" yaml:"stackName,omitempty"`
	Environment  string   `json:"environment,omitempty" yaml:"environment,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func runLs(cmd LsCmd, store *manifeststore.Store, out io.Writer) error {
	asm, err := cxapi.LoadAssembly(store, cmd.Assembly, cmd.loadOptions())
	if err != nil {
		return err
	}
	summaries, err := summarize(asm, "", cmd.Recursive)
	if err != nil {
		return err
	}

	switch cmd.Output {
	case "json":
		return writeJSON(out, summaries)
	case "yaml":
		return writeYAML(out, summaries)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTACK\tENVIRONMENT\tDEPENDS ON")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			path.Join(s.Assembly, s.ID),
			s.Type,
			orDash(s.StackName),
			orDash(s.Environment),
			orDash(strings.Join(s.Dependencies, ",")),
		)
	}
	return w.Flush()
}

func summarize(asm *cxapi.Assembly, prefix string, recursive bool) ([]artifactSummary, error) {
	var out []artifactSummary
	for artifact := range asm.TopologicalOrder() {
		summary := artifactSummary{
			Assembly:     prefix,
			ID:           artifact.ID(),
			Type:         string(artifact.Type()),
			Dependencies: artifact.DependencyIDs(),
		}
		if name := artifact.DisplayName(); name != artifact.ID() {
			summary.DisplayName = name
		}
		if stack, ok := artifact.(*cxapi.StackArtifact); ok {
			summary.StackName = stack.StackName()
			summary.Environment = stack.Environment().Name
		}
		out = append(out, summary)

		nested, ok := artifact.(*cxapi.NestedAssemblyArtifact)
		if !ok || !recursive {
			continue
		}
		child, err := nested.NestedAssembly()
		if err != nil {
			return nil, err
		}
		rows, err := summarize(child, path.Join(prefix, nested.ID()), true)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

type stackDetail struct {
	ID                             string            `json:"id" yaml:"id"`
	DisplayName                    string            `json:"displayName" yaml:"displayName"`
	StackName                      string            `json:"stackName" yaml:"stackName"`
	Environment                    string            `json:"environment" yaml:"environment"`
	TemplateFile                   string            `json:"templateFile" yaml:"templateFile"`
	Dependencies                   []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Parameters                     map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Tags                           map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	TerminationProtection          bool              `json:"terminationProtection" yaml:"terminationProtection"`
	AssumeRoleArn                  string            `json:"assumeRoleArn,omitempty" yaml:"assumeRoleArn,omitempty"`
	CloudFormationExecutionRoleArn string            `json:"cloudFormationExecutionRoleArn,omitempty" yaml:"cloudFormationExecutionRoleArn,omitempty"`
	RequiresBootstrapStackVersion  *int              `json:"requiresBootstrapStackVersion,omitempty" yaml:"requiresBootstrapStackVersion,omitempty"`
	Messages                       []messageView     `json:"messages,omitempty" yaml:"messages,omitempty"`
	Assets                         []assetView       `json:"assets,omitempty" yaml:"assets,omitempty"`
}

type assetView struct {
	ID        string `json:"id" yaml:"id"`
	Packaging string `json:"packaging" yaml:"packaging"`
	Path      string `json:"path" yaml:"path"`
}

type messageView struct {
	Level   string `json:"level" yaml:"level"`
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
}

func runStack(cmd StackCmd, store *manifeststore.Store, out io.Writer) error {
	asm, err := cxapi.LoadAssembly(store, cmd.Assembly, cmd.loadOptions())
	if err != nil {
		return err
	}
	stack, err := asm.GetStackByName(cmd.Name)
	if err != nil {
		return err
	}

	stackAssets, err := stack.Assets()
	if err != nil {
		return err
	}

	detail := stackDetail{
		ID:                             stack.ID(),
		DisplayName:                    stack.DisplayName(),
		StackName:                      stack.StackName(),
		Environment:                    stack.Environment().Name,
		TemplateFile:                   stack.TemplateFile(),
		Dependencies:                   stack.DependencyIDs(),
		Parameters:                     stack.Parameters(),
		Tags:                           stack.Tags(),
		TerminationProtection:          stack.TerminationProtection(),
		AssumeRoleArn:                  stack.AssumeRoleArn(),
		CloudFormationExecutionRoleArn: stack.CloudFormationExecutionRoleArn(),
	}
	if version, ok := stack.RequiresBootstrapStackVersion(); ok {
		detail.RequiresBootstrapStackVersion = &version
	}
	for _, message := range stack.Messages() {
		detail.Messages = append(detail.Messages, messageView{
			Level:   string(message.Level),
			Path:    message.ID,
			Message: message.Text(),
		})
	}

	for _, asset := range stackAssets {
		detail.Assets = append(detail.Assets, assetView{ID: asset.ID, Packaging: asset.Packaging, Path: asset.Path})
	}

	if cmd.Output == "json" {
		return writeJSON(out, detail)
	}
	return writeYAML(out, detail)
}

func runValidate(cmd ValidateCmd, store *manifeststore.Store, out io.Writer) error {
	asm, err := cxapi.LoadAssembly(store, cmd.Assembly, cmd.loadOptions())
	if err != nil {
		return err
	}

	report := validationReport{}
	if err := report.check(asm, ""); err != nil {
		return err
	}
	for _, line := range report.lines {
		_, _ = fmt.Fprintln(out, line)
	}
	if report.errors > 0 || len(report.problems) > 0 {
		for _, problem := range report.problems {
			_, _ = fmt.Fprintf(out, "[invalid] %s\n", problem)
		}
		return fmt.Errorf("assembly %s failed validation: %d error message(s), %d unreadable payload(s)", asm.Directory(), report.errors, len(report.problems))
	}
	_, _ = fmt.Fprintf(out, "assembly %s is valid: artifacts=%d warnings=%d\n", asm.Directory(), report.artifacts, report.warnings)
	return nil
}

type validationReport struct {
	lines     []string
	problems  []string
	artifacts int
	warnings  int
	errors    int
}

func (r *validationReport) check(asm *cxapi.Assembly, prefix string) error {
	for artifact := range asm.TopologicalOrder() {
		r.artifacts++
		for _, message := range artifact.Messages() {
			switch message.Level {
			case cxapi.MessageLevelWarning:
				r.warnings++
			case cxapi.MessageLevelError:
				r.errors++
			}
			r.lines = append(r.lines, fmt.Sprintf("[%s] %s: %s", message.Level, path.Join(prefix, message.ID), message.Text()))
		}

		switch typed := artifact.(type) {
		case *cxapi.StackArtifact:
			if _, err := typed.Template(); err != nil {
				r.problems = append(r.problems, err.Error())
			}
		case *cxapi.AssetManifestArtifact:
			if _, err := typed.Contents(); err != nil {
				r.problems = append(r.problems, err.Error())
			}
		case *cxapi.NestedAssemblyArtifact:
			child, err := typed.NestedAssembly()
			if err != nil {
				return err
			}
			if err := r.check(child, path.Join(prefix, typed.ID())); err != nil {
				return err
			}
		}
	}
	return nil
}

func runSynth(cmd SynthCmd, store *manifeststore.Store, out io.Writer) error {
	p, err := plan.ReadFile(cmd.Plan)
	if err != nil {
		return err
	}
	asm, err := plan.Synthesize(store, cmd.Output, p, cxapi.LoadOptions{})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	_, _ = fmt.Fprintf(out, "synthesized %d artifact(s) to %s\n", len(asm.Artifacts()), asm.Directory())
	return nil
}

func runAssetsPublish(cmd AssetsPublishCmd, cfg config.GlobalConfig, store *manifeststore.Store, deps commandDeps, out, errOut io.Writer) error {
	asm, err := cxapi.LoadAssembly(store, cmd.Assembly, cmd.loadOptions())
	if err != nil {
		return err
	}
	manifests, err := collectAssetManifests(asm)
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		_, _ = fmt.Fprintln(out, "no asset manifests in assembly")
		return nil
	}

	newObjectStore := deps.newObjectStore
	if newObjectStore == nil {
		newObjectStore = newMinioObjectStore
	}
	objects, err := newObjectStore(assets.MinioConfig{
		Endpoint:  config.Resolve(config.DefaultObjectEndpoint, cmd.Endpoint, cfg.ObjectStore.Endpoint),
		AccessKey: config.Resolve("", cmd.AccessKey, cfg.ObjectStore.AccessKey),
		SecretKey: config.Resolve("", cmd.SecretKey, cfg.ObjectStore.SecretKey),
		Region:    config.Resolve(cmd.Region, cfg.ObjectStore.Region),
		UseSSL:    !(cmd.Insecure || cfg.ObjectStore.Insecure),
	})
	if err != nil {
		return err
	}

	partition := config.Resolve(config.DefaultPartition, cmd.Partition, cfg.Partition)
	values := cxapi.MakeEnvironment(cmd.Account, cmd.Region).PlaceholderValues(partition)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	publisher := assets.NewPublisher(store.Filesystem(), objects)
	published, skipped := 0, 0
	for _, artifact := range manifests {
		contents, err := artifact.Contents()
		if err != nil {
			return err
		}
		results, err := publisher.PublishFiles(ctx, filepath.Dir(artifact.FullPath()), contents, values)
		for _, result := range results {
			state := "published"
			if result.Skipped {
				state = "skipped"
				skipped++
			} else {
				published++
			}
			_, _ = fmt.Fprintf(out, "%s %s/%s -> s3://%s/%s\n", state, result.AssetID, result.DestinationID, result.Bucket, result.Key)
		}
		if err != nil {
			return fmt.Errorf("publish %s: %w", artifact.ID(), err)
		}
		for _, id := range contents.DockerImageIDs() {
			_, _ = fmt.Fprintf(errOut, "Warning: docker image asset %s in %s is not published by cxctl\n", id, artifact.ID())
		}
	}
	_, _ = fmt.Fprintf(out, "asset publish complete: published=%d skipped=%d\n", published, skipped)
	return nil
}

// collectAssetManifests returns the asset manifest artifacts of asm and of
// every nested assembly below it.
func collectAssetManifests(asm *cxapi.Assembly) ([]*cxapi.AssetManifestArtifact, error) {
	manifests := asm.AssetManifests()
	for _, nested := range asm.NestedAssemblies() {
		child, err := nested.NestedAssembly()
		if err != nil {
			return nil, err
		}
		childManifests, err := collectAssetManifests(child)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, childManifests...)
	}
	return manifests, nil
}

func runDelete(cmd DeleteCmd, store *manifeststore.Store, out io.Writer) error {
	dir, err := filepath.Abs(cmd.Assembly)
	if err != nil {
		return fmt.Errorf("resolve assembly directory: %w", err)
	}
	exists, err := store.Exists(dir)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("assembly directory %s does not exist", dir)
	}
	hasManifest, err := store.Exists(store.ManifestPath(dir))
	if err != nil {
		return err
	}
	if !hasManifest && !cmd.Force {
		return fmt.Errorf("%s has no %s; pass --force to remove it anyway", dir, cxschema.ManifestFileName)
	}

	builder, err := cxapi.NewBuilder(store, dir, cxapi.BuilderOptions{})
	if err != nil {
		return err
	}
	if err := builder.Delete(); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	_, _ = fmt.Fprintf(out, "removed %s\n", dir)
	return nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
