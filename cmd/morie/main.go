// Package main provides the entry point for the morie CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/morie/cmd/morie/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
