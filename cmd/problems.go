package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/problems"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the built-in problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listProblems(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}

func listProblems(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIM\tSENSE\tCONSTRAINTS\tALGORITHM\tOPTIMUM\tDESCRIPTION")
	for _, name := range problems.Names() {
		p, err := problems.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%.6g\t%s\n",
			p.Name, p.Dim, p.Sense, len(p.Constraints), p.Algorithm.Key(), p.OptimumValue, p.Description)
	}
	return tw.Flush()
}
