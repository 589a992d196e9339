package main

import (
	"os"

	"github.com/ewilliams-labs/trackfinder/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
