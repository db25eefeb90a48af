// Copyright (c) 2026 Mesa Technologies
// testhub - PCB manufacturing test station hub
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for testhub.
//
// Usage:
//
//	go run . [flags]
//	./testhub [flags]
//
// A bare invocation launches the station TUI. See --help for the
// subcommands.
package main

import (
	"log"
	"os"

	"github.com/mesa-nmanteufel/testhub/ui/cli"
)

// main is the entrypoint for the testhub CLI.
func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("testhub CLI error: %v", err)
		os.Exit(1)
	}
}
