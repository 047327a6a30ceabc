package main

import (
	"os"

	"github.com/k-egor-smirnov/lift/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
