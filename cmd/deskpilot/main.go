package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/deskpilot/cmd"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables, swapped out in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	stderr      = os.Stderr
)

func main() {
	defer handlePanic()

	// SIGINT cancels the running goal; the pilot reports it as cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		reportError(err)
		osExit(cmd.ExitCode(err))
	}
}

// reportError prints failures that the commands have not already shown.
func reportError(err error) {
	var oe *cmd.OutcomeError
	if errors.As(err, &oe) {
		return
	}
	fmt.Fprintln(stderr, "Error:", err)
}

// handlePanic flushes the logs and keeps the stack in panicLogFile.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(stderr, "deskpilot crashed. Details logged to %s\n", panicLogFile)
	osExit(1)
}
