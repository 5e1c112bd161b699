// cmd/schedcored/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bravo1goingdark/schedcore/cli"
)

// Version information (set at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "unknown"
)

// main is the entry point for schedcored. It parses CLI flags and
// delegates execution to the CLI runner.
func main() {
	args := cli.ParseFlags()

	if args.ShowVersion {
		showVersion()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, args); err != nil {
		log.Fatalf("schedcored: %v", err)
	}
}

// showVersion displays version information.
func showVersion() {
	fmt.Printf("schedcored v%s\n", version)
	fmt.Printf("Built: %s\n", buildTime)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("\nschedcored is a standalone deferred-work job scheduler daemon.\n")
	os.Exit(0)
}
