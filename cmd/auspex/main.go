package main

import (
	"os"

	"auspex/cmd/auspex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
