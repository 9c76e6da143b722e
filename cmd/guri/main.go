// Package main is the entry point for the guri desktop assistant CLI.
//
// Usage:
//
//	guri [flags] <command> [args]
//
// Commands:
//
//	run      - Start an interactive session
//	voices   - List the voices of the configured synthesis engines
//	memory   - Inspect and manage long-term memory (list, search, delete)
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/guri-assistant/guri/cmd/guri/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
