package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const banner = `
 __  __          _ _       ____  _   _    _
|  \/  | ___  __| (_) __ _|  _ \| \ | |  / \
| |\/| |/ _ \/ _' | |/ _' | | | |  \| | / _ \
| |  | |  __/ (_| | | (_| | |_| | |\  |/ ___ \
|_|  |_|\___|\__,_|_|\__,_|____/|_| \_/_/   \_\

        Media Duplicate Finder
`

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "mediadna",
		Short:         "Find and remove duplicate images and videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), banner)
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.dbKind, "db-kind", "", "Store backend: sqlite, mongodb or badger")
	pf.StringVar(&flags.dbLocation, "db-location", "", "Store file, directory or connection URI")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newRemoveCommand(ctx))
	rootCmd.AddCommand(newPruneCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newFindCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
