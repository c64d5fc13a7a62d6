package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

var algorithmsFilter string

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the NLopt algorithms",
	Long: `Lists every algorithm identifier accepted by --algorithm together with
whether it needs gradients and NLopt's own description.`,
	Example: `  gonlopt algorithms
  gonlopt algorithms --filter LN_`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listAlgorithms(cmd.OutOrStdout(), algorithmsFilter)
	},
}

func init() {
	algorithmsCmd.Flags().StringVar(&algorithmsFilter, "filter", "", "Only list identifiers containing this text")
	rootCmd.AddCommand(algorithmsCmd)
}

// listAlgorithms prints the algorithm table, optionally filtered by key
func listAlgorithms(w io.Writer, filter string) error {
	filter = strings.ToUpper(filter)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tGRADIENT\tDESCRIPTION")
	for _, key := range nlopt.AlgorithmKeys() {
		if filter != "" && !strings.Contains(key, filter) {
			continue
		}
		alg, err := nlopt.ParseAlgorithm(key)
		if err != nil {
			return err
		}
		grad := "no"
		if alg.NeedsGradient() {
			grad = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, grad, alg)
	}
	return tw.Flush()
}
