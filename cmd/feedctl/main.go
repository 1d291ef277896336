// Command feedctl is the operator tool for the feed generator: it publishes
// the feed record and maintains the feed store.
package main

import (
	"fmt"
	"os"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/config"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := newCLIApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
