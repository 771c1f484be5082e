// Package main is the entry point for the fwctl CLI client.
package main

import (
	"github.com/fleetwatch/fleetwatch/cmd/fwctl/cmd"
)

func main() {
	cmd.Execute()
}
