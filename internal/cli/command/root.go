package command

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/cli/config"
	"github.com/jmoanes1/phonebook/internal/cli/output"
	"github.com/jmoanes1/phonebook/internal/infra/buildinfo"
	"github.com/jmoanes1/phonebook/internal/infra/shutdown"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

const (
	metaRuntime  = "runtime"
	metaShutdown = "shutdown"
	metaTTY      = "tty"
)

// App creates the CLI application. Resources opened by commands are
// released when h shuts down.
func App(h *shutdown.Handler) *cli.App {
	return newApp(h, nil, append(commands(), ShellCommand()))
}

func commands() []*cli.Command {
	return []*cli.Command{
		RegisterCommand(),
		LoginCommand(),
		LogoutCommand(),
		StatusCommand(),
		ProfileCommand(),
		ContactsCommand(),
		ConfigCommand(),
		BackupCommand(),
		StoreCommand(),
		VersionCommand(),
	}
}

func newApp(h *shutdown.Handler, rt *Runtime, cmds []*cli.Command) *cli.App {
	app := &cli.App{
		Name:     buildinfo.Product,
		Usage:    "Manage your contacts, online or offline",
		Version:  buildinfo.Version,
		Flags:    globalFlags(),
		Commands: cmds,
		Suggest:  true,
		Metadata: map[string]any{
			metaShutdown: h,
		},
		// Errors are returned to the caller, which prints them once.
		ExitErrHandler: func(*cli.Context, error) {},
	}
	if rt != nil {
		app.Metadata[metaRuntime] = rt
	}
	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file",
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Contacts api URL (e.g., http://localhost:3000)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Local store directory",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log debug output to stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config  string
	Server  string
	DataDir string
	Output  string // table, json, yaml
	Wide    bool
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:  c.String("config"),
		Server:  c.String("server"),
		DataDir: c.String("data-dir"),
		Output:  c.String("output"),
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}
}

// overrides maps the global flags given on the command line to
// configuration keys. Flags win over the file and the environment.
func overrides(c *cli.Context) map[string]any {
	flags := ParseGlobalFlags(c)
	m := make(map[string]any)
	if c.IsSet("server") {
		m["server.url"] = flags.Server
	}
	if c.IsSet("data-dir") {
		m["store.dir"] = flags.DataDir
	}
	if c.IsSet("output") {
		m["output"] = flags.Output
	}
	if flags.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// loadConfig loads and validates the effective configuration.
func loadConfig(c *cli.Context) (*config.CLIConfig, string, error) {
	path := ParseGlobalFlags(c).Config
	cfg, err := config.Load(path, overrides(c))
	if err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, fmt.Errorf("invalid configuration %s:\n%w", path, err)
	}
	return cfg, path, nil
}

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format output.Format
	wide   bool
}

func newPrinter(c *cli.Context, fallback string) (*printer, error) {
	name := fallback
	if c.IsSet("output") {
		name = c.String("output")
	}
	if name == "" {
		name = config.DefaultOutput
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return &printer{w: c.App.Writer, format: format, wide: c.Bool("wide")}, nil
}

// print writes data with the selected formatter.
func (p *printer) print(data any) error {
	return output.NewFormatter(p.format, p.wide).Format(p.w, data)
}

func (p *printer) table() bool {
	return p.format == output.FormatTable
}

// notice writes a human-readable line in table mode only, so json and
// yaml output stays parseable.
func (p *printer) notice(format string, args ...any) {
	if p.table() {
		fmt.Fprintf(p.w, format+"\n", args...)
	}
}

// PrintError prints err the way every command failure is reported.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %s\n", logger.RedactString(err.Error()))
}
