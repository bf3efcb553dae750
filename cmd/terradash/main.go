package main

import (
	"fmt"
	"os"

	"github.com/terradash/terradash/internal/cmd"
)

// Populated via -ldflags at release time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "terradash: %v\n", err)
		os.Exit(1)
	}
}
