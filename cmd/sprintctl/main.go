// Package main is the entry point for the sprintctl CLI.
package main

import (
	"os"

	"github.com/sakif/sprintium/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
