// docintel runs documents through the intelligence pipeline from the
// command line and inspects the run ledger.
//
// Usage:
//
//	docintel process intake/<name> [--media-type=<type>]
//	docintel process --file=<path>
//	docintel runs list [--state=<state>] [--label=<label>] [--search=<text>]
//	docintel runs export -o runs.xlsx
//	docintel mcp
//	docintel migrate [down|steps N|version|force N]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
