// Command cursorfold computes cursor-aware folds from folding ranges.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/odvcencio/cursorfold/cli"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cursorfold: %v\n", err)
		os.Exit(1)
	}
}
