// frisk searches and replaces text across directory trees.
package main

import (
	"fmt"
	"os"

	"github.com/eargollo/frisk/internal/cli"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "frisk:", err)
		os.Exit(1)
	}
}
