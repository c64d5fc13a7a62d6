package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gonlopt version %s (NLopt %s)\n", version, nlopt.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
