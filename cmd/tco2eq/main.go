// Package main provides the tco2eq command-line interface.
package main

import (
	"os"

	"github.com/loopvinyl/tco2eq-v3/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
