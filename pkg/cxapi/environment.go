package cxapi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/poruru-code/cxassembly/pkg/cxschema"
)

const (
	// UnknownAccount marks an environment whose account is resolved at deploy time.
	UnknownAccount = "unknown-account"
	// UnknownRegion marks an environment whose region is resolved at deploy time.
	UnknownRegion = "unknown-region"

	// DefaultPartition is used when no partition is configured.
	DefaultPartition = "aws"
)

var environmentPattern = regexp.MustCompile(`^aws://([^/]+)/([^/]+)$`)

// Environment is a deployment target.
type Environment struct {
	Account string
	Region  string
	Name    string
}

// ParseEnvironment parses an "aws://ACCOUNT/REGION" string.
func ParseEnvironment(value string) (Environment, error) {
	match := environmentPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return Environment{}, fmt.Errorf("unable to parse environment %q (expected aws://ACCOUNT/REGION)", value)
	}
	return MakeEnvironment(match[1], match[2]), nil
}

func FormatEnvironment(account, region string) string {
	return fmt.Sprintf("aws://%s/%s", account, region)
}

func MakeEnvironment(account, region string) Environment {
	return Environment{
		Account: account,
		Region:  region,
		Name:    FormatEnvironment(account, region),
	}
}

// IsAgnostic reports whether account or region is left to deploy time.
func (e Environment) IsAgnostic() bool {
	return e.Account == UnknownAccount || e.Region == UnknownRegion
}

func (e Environment) String() string {
	return e.Name
}

// PlaceholderValues returns the substitutions for this environment. An empty
// partition falls back to DefaultPartition.
func (e Environment) PlaceholderValues(partition string) cxschema.PlaceholderValues {
	if strings.TrimSpace(partition) == "" {
		partition = DefaultPartition
	}
	return cxschema.PlaceholderValues{
		AccountID: e.Account,
		Partition: partition,
		Region:    e.Region,
	}
}
