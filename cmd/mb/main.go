package main

import (
	"fmt"
	"os"

	"github.com/Martian-Engineering/mb-cli/cmd/mb/commands"
)

func main() {
	if err := commands.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
