package main

import (
	"os"

	"github.com/camden-git/photocatalog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
