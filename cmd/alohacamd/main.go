package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Populated via -ldflags="-X main.GitTag=... -X main.GitRevisionId=...".
var GitRevisionId string
var GitTag string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "alohacamd:", err)
		os.Exit(1)
	}
}
