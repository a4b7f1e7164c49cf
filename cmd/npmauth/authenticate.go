package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/akuity/npmauth/internal/authenticate"
	"github.com/akuity/npmauth/internal/config"
	"github.com/akuity/npmauth/internal/credentials"
	"github.com/akuity/npmauth/internal/credentials/endpoint"
	"github.com/akuity/npmauth/internal/credentials/packaging"
	"github.com/akuity/npmauth/internal/credentials/wif"
	"github.com/akuity/npmauth/internal/pipeline"
	versionpkg "github.com/akuity/npmauth/internal/version"
	"github.com/akuity/npmauth/pkg/logging"
)

const (
	flagWorkingFile       = "working-file"
	flagCustomEndpoint    = "custom-endpoint"
	flagFeedURL           = "feed-url"
	flagServiceConnection = "workload-identity-service-connection"
)

type authenticateOptions struct {
	WorkingFile       string
	CustomEndpoints   []string
	FeedURL           string
	ServiceConnection string
	Timeout           time.Duration
}

// addFlags adds the flags for the authenticate options to the provided flag
// set. Flags take precedence over the corresponding task inputs.
func (o *authenticateOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.WorkingFile, flagWorkingFile, "",
		"Path of the .npmrc file to authenticate. Overrides INPUT_WORKINGFILE.")
	flags.StringSliceVar(&o.CustomEndpoints, flagCustomEndpoint, nil,
		"IDs of service connections to registries outside of the organization. "+
			"Overrides INPUT_CUSTOMENDPOINT.")
	flags.StringVar(&o.FeedURL, flagFeedURL, "",
		"URL of the feed to authenticate with a workload identity. Overrides INPUT_FEEDURL.")
	flags.StringVar(&o.ServiceConnection, flagServiceConnection, "",
		"Service connection whose workload identity is used to authenticate the feed. "+
			"Overrides INPUT_WORKLOADIDENTITYSERVICECONNECTION.")
	flags.DurationVar(&o.Timeout, "timeout", 0,
		"Maximum duration of the whole step. Zero means no limit.")
}

// complete merges the flags that were set into cfg.
func (o *authenticateOptions) complete(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed(flagWorkingFile) {
		cfg.WorkingFile = o.WorkingFile
	}
	if flags.Changed(flagCustomEndpoint) {
		cfg.CustomEndpoints = o.CustomEndpoints
	}
	if flags.Changed(flagFeedURL) {
		cfg.FeedURL = o.FeedURL
	}
	if flags.Changed(flagServiceConnection) {
		cfg.WorkloadIdentityServiceConnection = o.ServiceConnection
	}
}

// validate performs validation of the options. If the options are invalid, an
// error is returned. The working file is validated by the runner so that a
// missing one is reported like any other failed run.
func (o *authenticateOptions) validate() error {
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", o.Timeout)
	}
	return nil
}

func newAuthenticateCommand() *cobra.Command {
	cmdOpts := &authenticateOptions{}
	cmd := &cobra.Command{
		Use:               "authenticate",
		Short:             "Add credentials for the registries of an .npmrc file",
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := logging.LoggerFromContext(ctx)

			commands := pipeline.NewCommands(cmd.OutOrStdout())
			vars := pipeline.NewVariables(commands, pipeline.OSEnv{})

			cfg, err := config.FromEnv()
			if err == nil {
				cmdOpts.complete(cmd.Flags(), &cfg)
				err = cmdOpts.validate()
			}
			if err != nil {
				authenticate.Fail(ctx, commands, vars, err)
				return err
			}

			if cmdOpts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cmdOpts.Timeout)
				defer cancel()
			}

			version := versionpkg.GetVersion()
			logger.Debug(
				"starting npmauth",
				"version", version.Version,
				"commit", version.GitCommit,
			)

			endpoints := endpoint.NewReader()
			resolver := credentials.NewResolver(
				endpoints,
				packaging.NewLocator(cfg.CollectionURI, cfg.AccessToken),
				wif.NewProvider(endpoints, cfg.OIDCRequestURI, cfg.AccessToken, cfg.AuthorityHost),
				cfg.AccessToken,
			)

			counters, err := authenticate.NewRunner(cfg, commands, vars, resolver).Run(ctx)
			if err != nil {
				return err
			}
			logger.Info(
				"authentication complete",
				"internal", counters.InternalFeedAuthCount,
				"external", counters.ExternalFeedAuthCount,
				"federated", counters.FederatedFeedAuthCount,
			)
			return nil
		},
	}
	cmdOpts.addFlags(cmd.Flags())
	return cmd
}
