// Command facegate is a camera face gate: it enrolls faces, recognizes
// them and reports every decision to the dashboard and to hooks.
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
