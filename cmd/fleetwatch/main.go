// Package main is the entry point for the fleetwatch server.
package main

import (
	"os"

	"github.com/fleetwatch/fleetwatch/cmd/fleetwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
