package cxschema

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// Placeholders that may appear in manifest and asset manifest strings. They
// are replaced with concrete values once the target environment is known.
const (
	CurrentAccount   = "${AWS::AccountId}"
	CurrentPartition = "${AWS::Partition}"
	CurrentRegion    = "${AWS::Region}"
)

type PlaceholderValues struct {
	AccountID string
	Partition string
	Region    string
}

func (v PlaceholderValues) replacer() *strings.Replacer {
	return strings.NewReplacer(
		CurrentAccount, v.AccountID,
		CurrentPartition, v.Partition,
		CurrentRegion, v.Region,
	)
}

// ReplacePlaceholdersInString substitutes every known placeholder in s.
func ReplacePlaceholdersInString(s string, values PlaceholderValues) string {
	return values.replacer().Replace(s)
}

// ReplacePlaceholders returns a copy of a decoded JSON/YAML value with the
// placeholders in every string (map values and slice elements, not map keys)
// replaced. Values of other types are returned as-is.
func ReplacePlaceholders(value any, values PlaceholderValues) any {
	return replaceWith(value, values.replacer())
}

func replaceWith(value any, r *strings.Replacer) any {
	switch typed := value.(type) {
	case string:
		return r.Replace(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = replaceWith(val, r)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = replaceWith(val, r)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, val := range typed {
			out[key] = r.Replace(val)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, val := range typed {
			out[i] = r.Replace(val)
		}
		return out
	default:
		return value
	}
}

// ResolveARN replaces placeholders in raw and parses the result as an ARN.
func ResolveARN(raw string, values PlaceholderValues) (arn.ARN, error) {
	resolved := ReplacePlaceholdersInString(strings.TrimSpace(raw), values)
	if !arn.IsARN(resolved) {
		return arn.ARN{}, fmt.Errorf("not an ARN: %q", resolved)
	}
	parsed, err := arn.Parse(resolved)
	if err != nil {
		return arn.ARN{}, fmt.Errorf("parse ARN %q: %w", resolved, err)
	}
	return parsed, nil
}
