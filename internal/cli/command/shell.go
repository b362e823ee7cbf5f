package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/cli/config"
	"github.com/jmoanes1/phonebook/internal/cli/repl"
	"github.com/jmoanes1/phonebook/internal/infra/buildinfo"
	"github.com/jmoanes1/phonebook/internal/infra/confloader"
	"github.com/jmoanes1/phonebook/internal/infra/shutdown"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"sh"},
		Usage:   "Start an interactive shell",
		Description: `Runs commands without the program name, sharing one session and one
open store. Changes to the log level in the configuration file apply
while the shell runs.

   phonebook> login ann@example.com
   phonebook> contacts add "Mary Ann" 555-1234
   phonebook> exit`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not load or save command history",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	if _, err := rt.start(c.Context); err != nil {
		rt.Logger.Warn("session start failed", "error", err)
	}

	h, _ := c.App.Metadata[metaShutdown].(*shutdown.Handler)
	cmds := commands()
	app := newApp(h, rt, cmds)
	app.Writer = c.App.Writer
	app.ErrWriter = c.App.ErrWriter
	app.HideVersion = true

	historyFile := ""
	if !c.Bool("no-history") {
		historyFile = repl.DefaultHistoryPath()
	}
	history := repl.NewHistory(historyFile, repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		rt.Logger.Warn("load history", "error", err)
	}

	shell := repl.New(
		func(ctx context.Context, args []string) error {
			ctx = logger.WithLogger(logger.WithCommand(ctx, args[0]), rt.Logger)
			return app.RunContext(ctx, append([]string{buildinfo.Product}, args...))
		},
		repl.WithIO(c.App.Reader, c.App.Writer, c.App.ErrWriter),
		repl.WithCompleter(repl.NewCompleter(commandWords(cmds))),
		repl.WithHistory(history),
		repl.WithPrompt(func() string { return shellPrompt(rt) }),
	)
	app.Reader = shell.Input()
	if f, ok := c.App.Reader.(*os.File); ok {
		app.Metadata[metaTTY] = f
	}

	stop := watchConfig(c, rt)
	defer stop()

	fmt.Fprintf(c.App.Writer, "%s %s, type help for commands, exit to leave\n", buildinfo.Product, buildinfo.Version)
	err = shell.Run(c.Context)

	if saveErr := history.Save(); saveErr != nil {
		rt.Logger.Warn("save history", "error", saveErr)
	}
	return err
}

// commandWords lists the word paths of cmds and their subcommands,
// aliases included.
func commandWords(cmds []*cli.Command) []string {
	var words []string
	var walk func(prefix string, cmds []*cli.Command)
	walk = func(prefix string, cmds []*cli.Command) {
		for _, cmd := range cmds {
			for _, name := range cmd.Names() {
				path := strings.TrimSpace(prefix + " " + name)
				words = append(words, path)
				walk(path, cmd.Subcommands)
			}
		}
	}
	walk("", cmds)
	return words
}

func shellPrompt(rt *Runtime) string {
	var b strings.Builder
	b.WriteString("phonebook")
	if s := rt.Phonebook().Session(); s.IsLoggedIn {
		b.WriteString(" " + s.User.Email)
	}
	if rt.Conn.Offline() {
		b.WriteString(" (offline)")
	}
	b.WriteString("> ")
	return b.String()
}

// watchConfig applies log level changes of the configuration file until
// the returned function is called.
func watchConfig(c *cli.Context, rt *Runtime) func() {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.Slog(rt.Logger)))
	if err != nil {
		rt.Logger.Warn("configuration watcher unavailable", "error", err)
		return func() {}
	}
	if err := w.Watch(rt.ConfigPath); err != nil {
		_ = w.Stop()
		return func() {}
	}

	ov := overrides(c)
	w.OnChange(func(path string) {
		cfg, err := config.Load(path, ov)
		if err == nil {
			err = config.Validate(cfg)
		}
		if err != nil {
			rt.Logger.Warn("configuration not reloaded", "path", path, "error", err)
			return
		}
		if cfg.Log.Level == logger.GetLevel() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			rt.Logger.Warn("log level not changed", "error", err)
			return
		}
		rt.Logger.Info("log level changed", "level", cfg.Log.Level)
	})
	w.StartAsync()
	return func() { _ = w.Stop() }
}
