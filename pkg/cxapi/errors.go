package cxapi

import (
	"fmt"
	"strings"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

type UnknownArtifactTypeError struct {
	ID   string
	Type cxschema.ArtifactType
}

func (e UnknownArtifactTypeError) Error() string {
	return fmt.Sprintf("artifact %q has unknown type %q", e.ID, e.Type)
}

// DependencyCycleError lists, in declaration order, the artifacts that could
// not be ordered: the members of a cycle and everything depending on one.
type DependencyCycleError struct {
	IDs []string
}

func (e DependencyCycleError) Error() string {
	if len(e.IDs) == 0 {
		return "artifact dependencies contain a cycle"
	}
	return fmt.Sprintf("artifact dependencies contain a cycle: %s", strings.Join(e.IDs, ", "))
}

type DanglingDependencyError struct {
	ID         string
	Dependency string
}

func (e DanglingDependencyError) Error() string {
	return fmt.Sprintf("artifact %q depends on %q, which is not in the assembly", e.ID, e.Dependency)
}

type ArtifactNotFoundError struct {
	ID string
}

func (e ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact not found: %s", e.ID)
}

type AmbiguousStackNameError struct {
	StackName string
	IDs       []string
}

func (e AmbiguousStackNameError) Error() string {
	return fmt.Sprintf("stack name %q is used by more than one artifact: %s", e.StackName, strings.Join(e.IDs, ", "))
}

type StackNotFoundError struct {
	StackName string
}

func (e StackNotFoundError) Error() string {
	return fmt.Sprintf("no stack named %q in the assembly", e.StackName)
}

type DuplicateArtifactIDError struct {
	ID string
}

func (e DuplicateArtifactIDError) Error() string {
	return fmt.Sprintf("artifact %q was already added", e.ID)
}

// ArtifactTypeError is returned when an artifact exists but is not of the
// type the caller asked for.
type ArtifactTypeError struct {
	ID   string
	Want cxschema.ArtifactType
	Got  cxschema.ArtifactType
}

func (e ArtifactTypeError) Error() string {
	return fmt.Sprintf("artifact %q is %q, not %q", e.ID, e.Got, e.Want)
}

// InvalidArtifactError reports a declaration whose type-specific properties
// are unusable.
type InvalidArtifactError struct {
	ID     string
	Reason string
	Err    error
}

func (e InvalidArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid artifact %q: %s: %v", e.ID, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid artifact %q: %s", e.ID, e.Reason)
}

func (e InvalidArtifactError) Unwrap() error {
	return e.Err
}
