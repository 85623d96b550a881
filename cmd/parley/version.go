package main

import (
	"fmt"

	"github.com/aretw0/parley"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of parley",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "parley version %s\n", parley.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
