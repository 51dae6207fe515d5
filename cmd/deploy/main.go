// deploy orchestrates synthesis and deployment of an environment.
//
// It handles:
//  1. Resolving the AWS account via STS
//  2. Bootstrapping AWS CDK
//  3. Deploying the environment's stacks
//
// Usage:
//
//	deploy [flags]
//
// Examples:
//
//	deploy                        # Deploy the development environment
//	deploy --env production       # Deploy a specific environment
//	deploy --dry-run              # cdk diff instead of deploy
//	deploy --skip-bootstrap       # Skip cdk bootstrap
//
// Install:
//
//	go install github.com/pyconhq/pycon-infra/cmd/deploy@latest
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/pyconhq/pycon-infra/infra"
)

var (
	envName       = flag.String("env", infra.DefaultEnvironment, "Environment to deploy")
	region        = flag.String("region", "", "AWS region (default: environment config, then AWS_REGION)")
	configPath    = flag.String("config", infra.DefaultConfigPath, "Path to the configuration file")
	dryRun        = flag.Bool("dry-run", false, "Preview changes with cdk diff instead of deploying")
	skipBootstrap = flag.Bool("skip-bootstrap", false, "Skip CDK bootstrap")
	verbose       = flag.Bool("verbose", false, "Show verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Deploy the VPC and S3 stacks for one environment.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSteps:\n")
		fmt.Fprintf(os.Stderr, "  1. Resolve the AWS account via STS\n")
		fmt.Fprintf(os.Stderr, "  2. Bootstrap AWS CDK (if needed)\n")
		fmt.Fprintf(os.Stderr, "  3. cdk deploy --all for the environment\n")
	}
	flag.Parse()

	logger := infra.NewLogger(*verbose)

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("deployment failed")
	}
}

func run(logger zerolog.Logger) error {
	ctx := context.Background()

	cfg, err := infra.LoadConfigFromFile(*configPath)
	if err != nil {
		return err
	}

	envCfg, err := cfg.Environment(*envName)
	if err != nil {
		return err
	}

	awsRegion := *region
	if awsRegion == "" {
		awsRegion, err = infra.ResolveRegion(envCfg)
		if err != nil {
			awsRegion = os.Getenv("AWS_REGION")
		}
	}
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
	if awsRegion == "" {
		return fmt.Errorf("%w for environment %q", infra.ErrMissingRegion, *envName)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(awsCfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("getting AWS identity: %w", err)
	}
	accountID := aws.ToString(identity.Account)

	logger.Info().
		Str("environment", *envName).
		Str("region", awsRegion).
		Str("account", accountID).
		Bool("dry_run", *dryRun).
		Msg("starting deployment")

	if !*skipBootstrap {
		bootstrapCDK(ctx, accountID, awsRegion, *dryRun)
	}

	if err := deployCDK(ctx, *envName, accountID, awsRegion, *dryRun); err != nil {
		return fmt.Errorf("deploying: %w", err)
	}

	logger.Info().Msg("deployment complete")
	if !*dryRun {
		fmt.Println()
		fmt.Println("To get outputs:")
		fmt.Printf("  aws cloudformation describe-stacks --stack-name VpcStack-%s --region %s --query 'Stacks[0].Outputs' --no-cli-pager\n", *envName, awsRegion)
		fmt.Printf("  aws cloudformation describe-stacks --stack-name S3Stack-%s --region %s --query 'Stacks[0].Outputs' --no-cli-pager\n", *envName, awsRegion)
	}

	return nil
}

// bootstrapCDK runs cdk bootstrap.
func bootstrapCDK(ctx context.Context, accountID, region string, dryRun bool) {
	target := fmt.Sprintf("aws://%s/%s", accountID, region)
	fmt.Printf("Bootstrap target: %s\n", target)

	if dryRun {
		fmt.Println("[DRY RUN] Would run: cdk bootstrap " + target)
		return
	}

	cmd := exec.CommandContext(ctx, "cdk", "bootstrap", target)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		// Bootstrap might fail if already done, that's OK
		fmt.Println("  Bootstrap completed (or already bootstrapped)")
	}
}

// deployCDK runs cdk deploy (or cdk diff under --dry-run) with the
// environment selected via CDK context.
func deployCDK(ctx context.Context, envName, accountID, region string, dryRun bool) error {
	envContext := fmt.Sprintf("env=%s", envName)

	if dryRun {
		fmt.Println("Running cdk diff...")
		cmd := exec.CommandContext(ctx, "cdk", "diff", "--all", "-c", envContext)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = deployEnv(accountID, region)
		_ = cmd.Run() // Ignore error, diff returns non-zero if there are differences
		return nil
	}

	fmt.Println("Running cdk deploy...")
	cmd := exec.CommandContext(ctx, "cdk", "deploy", "--all", "--require-approval", "never", "-c", envContext)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = deployEnv(accountID, region)

	return cmd.Run()
}

// deployEnv passes the resolved account and region to the app command.
func deployEnv(accountID, region string) []string {
	return append(os.Environ(),
		"CDK_DEFAULT_ACCOUNT="+accountID,
		"CDK_DEFAULT_REGION="+region,
	)
}
