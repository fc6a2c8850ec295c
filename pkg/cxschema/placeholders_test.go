package cxschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testValues = PlaceholderValues{AccountID: "123456789012", Partition: "aws", Region: "eu-west-1"}

func TestReplacePlaceholdersNested(t *testing.T) {
	in := map[string]any{
		"bucketName": "cdk-assets-${AWS::AccountId}-${AWS::Region}",
		"destinations": []any{
			map[string]any{"role": "arn:${AWS::Partition}:iam::${AWS::AccountId}:role/publish"},
			42,
			true,
		},
		"${AWS::Region}": "key untouched",
	}

	got := ReplacePlaceholders(in, testValues).(map[string]any)

	assert.Equal(t, "cdk-assets-123456789012-eu-west-1", got["bucketName"])
	dest := got["destinations"].([]any)
	assert.Equal(t, "arn:aws:iam::123456789012:role/publish", dest[0].(map[string]any)["role"])
	assert.Equal(t, 42, dest[1])
	assert.Equal(t, true, dest[2])
	assert.Equal(t, "key untouched", got["${AWS::Region}"])

	// input is not mutated
	assert.Equal(t, "cdk-assets-${AWS::AccountId}-${AWS::Region}", in["bucketName"])
}

func TestReplacePlaceholdersStringCollections(t *testing.T) {
	got := ReplacePlaceholders(map[string]string{"a": "${AWS::Region}"}, testValues)
	assert.Equal(t, map[string]string{"a": "eu-west-1"}, got)

	list := ReplacePlaceholders([]string{"${AWS::Partition}"}, testValues)
	assert.Equal(t, []string{"aws"}, list)
}

func TestResolveARN(t *testing.T) {
	parsed, err := ResolveARN("arn:${AWS::Partition}:iam::${AWS::AccountId}:role/cdk-deploy-${AWS::Region}", testValues)
	require.NoError(t, err)
	assert.Equal(t, "aws", parsed.Partition)
	assert.Equal(t, "iam", parsed.Service)
	assert.Equal(t, "123456789012", parsed.AccountID)
	assert.Equal(t, "role/cdk-deploy-eu-west-1", parsed.Resource)

	_, err = ResolveARN("not-an-arn", testValues)
	require.Error(t, err)
}
