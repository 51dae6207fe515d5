// synth is the CDK application entrypoint, invoked by the cdk CLI via
// the app command in cdk.json.
//
// Environment selection:
//
//	cdk synth -c env=production
//	CDK_ENV=production cdk synth
//
// Without either, the development environment is synthesized.
package main

import (
	"os"

	"github.com/aws/jsii-runtime-go"

	"github.com/pyconhq/pycon-infra/infra"
)

func main() {
	defer jsii.Close()

	logger := infra.NewLogger(os.Getenv("INFRA_VERBOSE") != "")

	app := infra.NewApp()

	cfg, err := infra.LoadConfigFromFile(infra.DefaultConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading configuration")
	}

	env, err := infra.ResolveEnvironment(app, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolving environment")
	}

	logger.Info().
		Str("environment", env.Name).
		Str("region", env.Region).
		Str("account", env.Account).
		Msg("synthesizing")

	if _, err := infra.BuildEnvironment(app, env, logger); err != nil {
		logger.Fatal().Err(err).Msg("declaring stacks")
	}

	infra.Synth(app)
}
