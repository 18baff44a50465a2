// Package main provides the entry point for the ragctl CLI.
package main

import (
	"os"

	"github.com/draco28/ragcore/cmd/ragctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
