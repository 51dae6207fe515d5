package infra

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/rs/zerolog"
)

// StorageStack declares the S3 buckets for one environment. Every
// bucket is versioned, encrypted with S3-managed keys, blocked from
// all public access and retained on stack deletion.
type StorageStack struct {
	awscdk.Stack

	// EnvName is the environment the stack belongs to.
	EnvName string

	// Buckets maps configured bucket names to their constructs.
	Buckets map[string]awss3.Bucket
}

// StorageStackProps configures a StorageStack.
type StorageStackProps struct {
	// EnvName is the environment name, used in output descriptions.
	EnvName string

	// Buckets are the bucket specifications, declared in list order.
	Buckets []BucketConfig

	// Logger receives synthesis progress events.
	Logger zerolog.Logger

	// StackProps are passed through to the underlying CDK stack.
	StackProps awscdk.StackProps
}

// NewStorageStack declares the storage resources for an environment.
// Entries without a bucket name are skipped with a warning; everything
// else is fatal further up the stack.
func NewStorageStack(scope constructs.Construct, id string, props *StorageStackProps) *StorageStack {
	s := &StorageStack{
		Stack:   awscdk.NewStack(scope, jsii.String(id), &props.StackProps),
		EnvName: props.EnvName,
		Buckets: make(map[string]awss3.Bucket),
	}

	log := props.Logger.With().Str("stack", id).Logger()

	for i, bucket := range props.Buckets {
		if bucket.BucketName == "" {
			log.Warn().Int("index", i).Msg("skipping bucket entry without a name")
			continue
		}
		s.createBucket(bucket.BucketName, log)
	}

	return s
}

// createBucket declares one bucket plus its name and ARN outputs.
func (s *StorageStack) createBucket(bucketName string, log zerolog.Logger) {
	id := ConstructID(bucketName)

	bucket := awss3.NewBucket(s.Stack, jsii.String(id), &awss3.BucketProps{
		BucketName:        jsii.String(bucketName),
		Versioned:         jsii.Bool(true),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		// Buckets outlive their stack: deleting the declaration must
		// never delete the data.
		RemovalPolicy: awscdk.RemovalPolicy_RETAIN,
	})
	s.Buckets[bucketName] = bucket

	awscdk.NewCfnOutput(s.Stack, jsii.String(id+"Name"), &awscdk.CfnOutputProps{
		Value:       bucket.BucketName(),
		Description: jsii.String(fmt.Sprintf("Name of S3 bucket %s for %s environment", bucketName, s.EnvName)),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String(id+"Arn"), &awscdk.CfnOutputProps{
		Value:       bucket.BucketArn(),
		Description: jsii.String(fmt.Sprintf("ARN of S3 bucket %s for %s environment", bucketName, s.EnvName)),
	})

	log.Info().Str("bucket", bucketName).Str("construct_id", id).Msg("declared bucket")
}
