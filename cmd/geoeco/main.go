package main

import (
	"os"

	"github.com/geoeco/tracker/cmd/geoeco/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
