package main

import (
	"os"

	"github.com/psantana5/runcosi/cmd/runcosi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
