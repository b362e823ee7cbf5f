// Package shutdown ties phonebook-cli to process signals.
//
// Notify returns a context canceled on SIGINT or SIGTERM so a blocked
// remote call or the interactive shell returns promptly. Cleanup hooks,
// such as closing the local store, run once through Shutdown.
//
//	h := shutdown.NewHandler(5 * time.Second)
//	ctx, stop := h.Notify(context.Background())
//	defer stop()
//	err := app.RunContext(ctx, os.Args)
//	h.Shutdown()
package shutdown
