// Command platform-scanner finds A-share stocks in a consolidation platform.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
