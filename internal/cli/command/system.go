package command

import (
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/cli/output"
	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/infra/buildinfo"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"whoami"},
		Usage:   "Show session, server and local store status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print client metrics in Prometheus text format",
			},
		},
		Action: status,
	}
}

// StoreCommand returns the store subcommand group.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Inspect and maintain the local store",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show local store statistics",
				Action: storeStats,
			},
			{
				Name:   "gc",
				Usage:  "Reclaim space in the local store",
				Action: storeGC,
			},
		},
	}
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show build information",
		Action: version,
	}
}

type statusView struct {
	State      domain.State `json:"state"`
	UserID     string       `json:"user_id,omitempty"`
	Name       string       `json:"name,omitempty"`
	Email      string       `json:"email,omitempty"`
	Contacts   int          `json:"contacts"`
	Server     string       `json:"server"`
	Connection string       `json:"connection"`
	Store      string       `json:"store"`
	Sealed     bool         `json:"sealed"`
	Fallback   bool         `json:"fallback"`
	LastError  string       `json:"last_error,omitempty"`
	Config     string       `json:"config" table:"wide"`
}

func status(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}

	// A failed refresh is part of the status, not a command failure.
	if _, err := rt.start(c.Context); err != nil {
		rt.Logger.Debug("status: start", "error", err)
	}

	pb := rt.Phonebook()
	s := pb.Session()
	view := statusView{
		State:      s.State(),
		Contacts:   len(pb.Contacts("")),
		Server:     rt.Client.BaseURL(),
		Connection: string(rt.Conn.Status()),
		Store:      rt.Store.EngineName(),
		Sealed:     rt.Store.Sealed(),
		Fallback:   rt.Config.Fallback.Enabled,
		Config:     rt.ConfigPath,
	}
	if s.HasToken() {
		view.UserID = s.User.ID
		view.Name = s.User.Name
		view.Email = s.User.Email
	}
	if s.LastError != nil {
		view.LastError = logger.RedactString(s.LastError.Error())
	}

	if err := p.print(view); err != nil {
		return err
	}
	if c.Bool("metrics") {
		fmt.Fprintln(c.App.Writer)
		return rt.Metrics.WriteText(c.App.Writer)
	}
	return nil
}

type storeStatsView struct {
	Engine    string         `json:"engine"`
	Sealed    bool           `json:"sealed"`
	Keys      map[string]int `json:"keys" table:"-"`
	TotalSize uint64         `json:"total_size"`
	LSMSize   uint64         `json:"lsm_size" table:"wide"`
	VLogSize  uint64         `json:"value_log_size" table:"wide"`
	LastGC    string         `json:"last_gc,omitempty"`
}

func storeStats(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}

	st, err := rt.Store.Stats(c.Context)
	if err != nil {
		return err
	}
	keys, err := rt.Store.KeyCounts(c.Context)
	if err != nil {
		return err
	}

	view := storeStatsView{
		Engine:    rt.Store.EngineName(),
		Sealed:    rt.Store.Sealed(),
		Keys:      keys,
		TotalSize: st.TotalSize,
		LSMSize:   st.LSMSize,
		VLogSize:  st.ValueLogSize,
	}
	if st.LastGCTime > 0 {
		view.LastGC = time.UnixMilli(st.LastGCTime).Format(time.RFC3339)
	}

	if err := p.print(view); err != nil || !p.table() {
		return err
	}

	names := make([]string, 0, len(keys))
	for ns := range keys {
		names = append(names, ns)
	}
	sort.Strings(names)
	t := &output.Table{}
	t.SetHeaders("NAMESPACE", "KEYS")
	for _, ns := range names {
		t.AddRow(ns, fmt.Sprint(keys[ns]))
	}
	fmt.Fprintln(c.App.Writer)
	return p.print(t)
}

func storeGC(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}

	n, err := rt.Store.GC(c.Context)
	if err != nil {
		return err
	}
	p.notice("Reclaimed %d bytes", n)
	if p.table() {
		return nil
	}
	return p.print(map[string]uint64{"reclaimed": n})
}

func version(c *cli.Context) error {
	p, err := newPrinter(c, "")
	if err != nil {
		return err
	}
	return p.print(buildinfo.Get())
}
