package main

import (
	"os"

	"github.com/paperdag/paperdag/cmd"
	"github.com/paperdag/paperdag/internal/build"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var version = "dev"

func init() {
	build.Version = version
}
