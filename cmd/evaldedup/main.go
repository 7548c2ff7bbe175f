package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThakiCloud/vllm-eval/internal/engine"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, output io.Writer, errorOutput io.Writer) int {
	root := newRootCommand(output, errorOutput)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errorType := engine.ErrorType(err); errorType != "internal" {
			fmt.Fprintf(errorOutput, "evaldedup failed (%s): %v\n", errorType, err)
		} else {
			fmt.Fprintf(errorOutput, "evaldedup failed: %v\n", err)
		}
		return exitFailure
	}
	return exitSuccess
}
