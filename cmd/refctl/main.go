// Command refctl is the operator CLI: ingest a rulebook, query the rule index
// and grade a call from the terminal.
package main

import (
	"os"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
