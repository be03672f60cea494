// Command segfetch is a small parallel HTTP/HTTPS file downloader. See
// printUsage in cli.go for the full command surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segfetch/segfetch/internal/errs"
)

// runCtx carries the cancelable context every CLI path downloads under. A
// caught OS signal cancels it; for a multi-segment download, job.go bridges
// ctx.Done() to the job's stopFlag, so every segment worker observes it and
// exits within one read/write round, per §5. A single-stream download has
// no stopFlag to bridge into: cancellation only stops it before its
// connection is established, and a body read already under way runs until
// it completes or a transport read/write deadline expires.
type runCtx struct {
	ctx context.Context
}

// errExitCode maps err onto the §6 exit-code table; unrecognized errors
// fall back to the Memory code, same default the teacher's FatalCheck uses
// for anything it doesn't specifically classify.
func errExitCode(err error) int {
	if e, ok := errs.As(err); ok {
		return e.Kind.ExitCode()
	}
	return errs.Memory.ExitCode()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-signalChan
		cancel()
	}()
	defer cancel()

	os.Exit(run(runCtx{ctx: ctx}, os.Args[1:]))
}

// run dispatches the top-level command surface and returns the process
// exit code; factored out of main so it never calls os.Exit itself.
func run(ctx runCtx, args []string) int {
	if len(args) == 0 {
		return runInteractive(ctx)
	}

	switch args[0] {
	case "-v", "--version":
		printVersion()
		return 0
	case "-h", "--help":
		printUsage("segfetch")
		return 0
	case "-t", "--test":
		return runSelfTest(ctx)
	case "-d", "--download":
		return runDownloadCLI(ctx, args[1:])
	default:
		printUsage("segfetch")
		return errs.URLParse.ExitCode()
	}
}
