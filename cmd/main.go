// Command gonlopt runs, benchmarks and serves nonlinear optimizations backed
// by NLopt and the Mayfly algorithm.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
