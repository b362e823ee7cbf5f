package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoanes1/phonebook/internal/cli/command"
	"github.com/jmoanes1/phonebook/internal/infra/shutdown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	h := shutdown.NewHandler(shutdownTimeout)
	ctx, stop := h.Notify(context.Background())
	defer stop()

	err := command.App(h).RunContext(ctx, os.Args)
	if serr := h.Shutdown(); serr != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", serr)
	}
	if err != nil {
		command.PrintError(os.Stderr, err)
		return 1
	}
	return 0
}
