// Package main is the entry point for the insightduck server CLI.
package main

import (
	"os"

	"github.com/insightduck/insightduck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
