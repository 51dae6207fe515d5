package infra

import (
	"fmt"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/rs/zerolog"
)

const (
	// DefaultEnvironment is used when neither the CDK context nor
	// CDK_ENV names an environment.
	DefaultEnvironment = "development"

	// ProjectTag is the Project tag value applied to every resource.
	ProjectTag = "pycon"

	// DefaultConfigPath is the configuration file read by cmd/synth.
	DefaultConfigPath = "cdk.json"
)

// Environment is a fully resolved deployment target: a named entry
// from the configuration plus the account and region to deploy it to.
type Environment struct {
	Name    string
	Account string
	Region  string
	Config  EnvironmentConfig
}

// Stacks groups the constructs declared for one environment.
type Stacks struct {
	Network *NetworkStack
	Storage *StorageStack
}

// NewApp creates a CDK app with common settings.
func NewApp() awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			"@aws-cdk/core:newStyleStackSynthesis": true,
		},
	})
}

// Synth synthesizes the CDK app to CloudFormation templates.
func Synth(app awscdk.App) {
	app.Synth(nil)
}

// ResolveEnvironmentName returns the active environment name: the
// "env" CDK context value, then CDK_ENV, then DefaultEnvironment.
func ResolveEnvironmentName(app awscdk.App) string {
	if v := app.Node().TryGetContext(jsii.String("env")); v != nil {
		switch name := v.(type) {
		case string:
			if name != "" {
				return name
			}
		case *string:
			if name != nil && *name != "" {
				return *name
			}
		}
	}
	if name := os.Getenv("CDK_ENV"); name != "" {
		return name
	}
	return DefaultEnvironment
}

// ResolveRegion returns the deployment region for an environment: the
// configured region, then CDK_DEFAULT_REGION, else ErrMissingRegion.
func ResolveRegion(env EnvironmentConfig) (string, error) {
	if env.Region != "" {
		return env.Region, nil
	}
	if region := os.Getenv("CDK_DEFAULT_REGION"); region != "" {
		return region, nil
	}
	return "", ErrMissingRegion
}

// ResolveEnvironment resolves the active deployment target from the
// app context, the process environment and the loaded configuration.
func ResolveEnvironment(app awscdk.App, cfg *Config) (*Environment, error) {
	name := ResolveEnvironmentName(app)

	envCfg, err := cfg.Environment(name)
	if err != nil {
		return nil, err
	}

	region, err := ResolveRegion(envCfg)
	if err != nil {
		return nil, fmt.Errorf("%w for environment %q", err, name)
	}

	return &Environment{
		Name:    name,
		Account: os.Getenv("CDK_DEFAULT_ACCOUNT"),
		Region:  region,
		Config:  envCfg,
	}, nil
}

// BuildEnvironment declares the network and storage stacks for env.
// Every resource in both stacks carries Environment, Project and
// Region tags.
func BuildEnvironment(app awscdk.App, env *Environment, logger zerolog.Logger) (*Stacks, error) {
	tags := convertTags(map[string]string{
		"Environment": env.Name,
		"Project":     ProjectTag,
		"Region":      env.Region,
	})

	var awsEnv *awscdk.Environment
	if env.Account != "" || env.Region != "" {
		awsEnv = &awscdk.Environment{}
		if env.Account != "" {
			awsEnv.Account = jsii.String(env.Account)
		}
		if env.Region != "" {
			awsEnv.Region = jsii.String(env.Region)
		}
	}

	log := logger.With().Str("environment", env.Name).Logger()

	network, err := NewNetworkStack(app, fmt.Sprintf("VpcStack-%s", env.Name), &NetworkStackProps{
		EnvName: env.Name,
		VPC:     env.Config.VPC,
		Logger:  log,
		StackProps: awscdk.StackProps{
			Env:         awsEnv,
			Description: jsii.String(fmt.Sprintf("VPC infrastructure for %s environment", env.Name)),
			Tags:        tags,
		},
	})
	if err != nil {
		return nil, err
	}

	storage := NewStorageStack(app, fmt.Sprintf("S3Stack-%s", env.Name), &StorageStackProps{
		EnvName: env.Name,
		Buckets: env.Config.S3,
		Logger:  log,
		StackProps: awscdk.StackProps{
			Env:         awsEnv,
			Description: jsii.String(fmt.Sprintf("S3 buckets for %s environment", env.Name)),
			Tags:        tags,
		},
	})

	return &Stacks{Network: network, Storage: storage}, nil
}

// convertTags converts a map to CDK tags.
func convertTags(tags map[string]string) *map[string]*string {
	if tags == nil {
		return nil
	}
	result := make(map[string]*string)
	for k, v := range tags {
		result[k] = jsii.String(v)
	}
	return &result
}
