package main

import (
	"fmt"
	"os"

	"github.com/erraggy/oasrouter/cmd/oasrouter/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
