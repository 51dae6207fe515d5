package infra

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorageStack(t *testing.T, buckets []BucketConfig) (*StorageStack, assertions.Template) {
	t.Helper()
	app := awscdk.NewApp(nil)
	stack := NewStorageStack(app, "S3Stack-test", &StorageStackProps{
		EnvName: "test",
		Buckets: buckets,
		Logger:  NopLogger(),
	})
	return stack, assertions.Template_FromStack(stack.Stack, nil)
}

func TestStorageStackSkipsNamelessEntries(t *testing.T) {
	stack, template := newStorageStack(t, []BucketConfig{
		{},
		{BucketName: "logs-bucket"},
	})

	template.ResourceCountIs(jsii.String("AWS::S3::Bucket"), jsii.Number(1))
	assert.Len(t, stack.Buckets, 1)
	assert.Contains(t, stack.Buckets, "logs-bucket")
}

func TestStorageStackBucketProperties(t *testing.T) {
	_, template := newStorageStack(t, []BucketConfig{
		{BucketName: "logs-bucket"},
	})

	template.HasResourceProperties(jsii.String("AWS::S3::Bucket"), map[string]interface{}{
		"BucketName": "logs-bucket",
		"VersioningConfiguration": map[string]interface{}{
			"Status": "Enabled",
		},
		"BucketEncryption": map[string]interface{}{
			"ServerSideEncryptionConfiguration": []interface{}{
				map[string]interface{}{
					"ServerSideEncryptionByDefault": map[string]interface{}{
						"SSEAlgorithm": "AES256",
					},
				},
			},
		},
		"PublicAccessBlockConfiguration": map[string]interface{}{
			"BlockPublicAcls":       true,
			"BlockPublicPolicy":     true,
			"IgnorePublicAcls":      true,
			"RestrictPublicBuckets": true,
		},
	})
}

func TestStorageStackRetainsBuckets(t *testing.T) {
	_, template := newStorageStack(t, []BucketConfig{
		{BucketName: "logs-bucket"},
	})

	template.HasResource(jsii.String("AWS::S3::Bucket"), map[string]interface{}{
		"DeletionPolicy":      "Retain",
		"UpdateReplacePolicy": "Retain",
	})
}

func TestStorageStackOutputs(t *testing.T) {
	_, template := newStorageStack(t, []BucketConfig{
		{BucketName: "logs-bucket"},
		{BucketName: "my-bucket.name"},
	})

	outputs := template.FindOutputs(jsii.String("*"), nil)
	require.NotNil(t, outputs)
	assert.Len(t, *outputs, 4)

	for _, id := range []string{
		"LogsBucketName",
		"LogsBucketArn",
		"MyBucketNameName",
		"MyBucketNameArn",
	} {
		assert.Contains(t, *outputs, id)
	}
}

func TestStorageStackEmptyList(t *testing.T) {
	stack, template := newStorageStack(t, nil)

	template.ResourceCountIs(jsii.String("AWS::S3::Bucket"), jsii.Number(0))
	assert.Empty(t, stack.Buckets)
}
