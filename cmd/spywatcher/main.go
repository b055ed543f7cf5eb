package main

import (
	"os"

	"github.com/subculture-collective/spywatcher/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
