package main

import (
	"fmt"
	"os"

	"github.com/on-the-ground/wrapkit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
