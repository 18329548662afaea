package main

import (
	"os"

	"github.com/spanlite/spanlite-go-sdk/cmd/spanlite/command"
)

func main() {
	if err := command.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
