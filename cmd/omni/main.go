// Command omni is a terminal client for an OmniAgent chat backend.
//
// Usage:
//
//	omni [flags]                interactive chat (same as omni chat)
//	omni ask [flags] <text>     run one turn and print the result
//	omni clear [flags]          clear the current session
//	omni models [flags]         list the backend's providers and models
//	omni sessions [flags]       list stored sessions
//
// Every flag can also be set in $HOME/.omni/config.yaml or through an
// OMNI_ prefixed environment variable (OMNI_API_BASE, OMNI_POLL_INTERVAL).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "omni: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
