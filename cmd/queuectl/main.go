package main

import (
	"fmt"
	"os"

	"github.com/jwalitptl/clinic-queue/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
