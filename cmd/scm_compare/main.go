// Command scm_compare prepares single-column model test runs and compares
// their statistics output with reference LES output.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
