package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	intos "github.com/akuity/npmauth/internal/os"
	"github.com/akuity/npmauth/pkg/logging"
)

// systemDebugVar is set by the build agent when a build runs with diagnostics
// enabled.
const systemDebugVar = "System.Debug"

type rootOptions struct {
	LogLevel  string
	LogFormat string
}

func (o *rootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(
		&o.LogLevel,
		"log-level",
		intos.GetEnv(logging.LogLevelEnvVar, defaultLogLevel()),
		"Log level: discard, error, info, debug or trace.",
	)
	flags.StringVar(
		&o.LogFormat,
		"log-format",
		intos.GetEnv(logging.LogFormatEnvVar, string(logging.DefaultFormat)),
		"Log format: console or json.",
	)
}

// defaultLogLevel is debug for builds with diagnostics enabled and info
// otherwise.
func defaultLogLevel() string {
	if intos.GetEnvAsBool(intos.VariableEnvName(systemDebugVar), false) {
		return "debug"
	}
	return "info"
}

// logger returns a *logging.Logger configured as requested.
func (o *rootOptions) logger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(o.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(level, format)
}

func newRootCommand() *cobra.Command {
	cmdOpts := &rootOptions{}
	cmd := &cobra.Command{
		Use:               "npmauth",
		Short:             "Authenticate npm against Azure Artifacts and other registries",
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := cmdOpts.logger()
			if err != nil {
				return err
			}
			cmd.SetContext(logging.ContextWithLogger(cmd.Context(), logger))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
	cmdOpts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(newAuthenticateCommand())
	cmd.AddCommand(newRestoreCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}
