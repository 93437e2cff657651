package main

import (
	"os"

	"github.com/wonny/quantrank/cmd/rankd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
