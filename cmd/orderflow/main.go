package main

import (
	"os"

	"github.com/orderflow-systems/orderflow-pipeline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
