// Package main provides the assetlineage CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/assetlineage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
