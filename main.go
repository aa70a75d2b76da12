package main

import (
	"os"

	"github.com/tanglekit/tangle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
