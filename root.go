// anytrack/root.go
package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "anytrack",
		Short:         "Convert, fetch and retag audio through an AnyTrack service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newYouTubeCommand(a))
	rootCmd.AddCommand(newMetadataCommand(a))
	rootCmd.AddCommand(newShellCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newHealthCommand(a))

	return rootCmd
}
