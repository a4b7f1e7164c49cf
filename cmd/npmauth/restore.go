package main

import (
	"github.com/spf13/cobra"

	"github.com/akuity/npmauth/internal/authenticate"
	"github.com/akuity/npmauth/internal/pipeline"
)

func newRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "restore",
		Short:             "Restore the .npmrc files authenticated during the build",
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars := pipeline.NewVariables(
				pipeline.NewCommands(cmd.OutOrStdout()),
				pipeline.OSEnv{},
			)
			return authenticate.Restore(cmd.Context(), vars)
		},
	}
}
