// Command otulearn trains, evaluates and applies supervised models on
// microbiome feature tables from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "otulearn: %+v\n", err)
		os.Exit(1)
	}
}
