package main

import (
	"os"

	"github.com/BerylCAtieno/document-task-extractor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
