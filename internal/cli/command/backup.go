package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/cli/output"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up or restore the local store",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Write a backup of the local store",
				ArgsUsage: "FILE",
				Action:    backupCreate,
			},
			{
				Name:      "restore",
				Usage:     "Replace the local store with a backup",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupRestore,
			},
		},
	}
}

func backupCreate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("backup file path required")
	}
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".phonebook-backup-*")
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer os.Remove(tmp.Name())

	bar := output.NewProgressBar(c.App.ErrWriter, "Exporting")
	w := bar.Writer(tmp)
	if !c.Bool("verbose") {
		w = tmp
	}
	if err := rt.Store.Export(c.Context, w); err != nil {
		tmp.Close()
		return err
	}
	if c.Bool("verbose") {
		bar.Finish()
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Backup written to %s\n", path)
	return nil
}

func backupRestore(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("backup file path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	if !c.Bool("force") {
		ok, err := confirm(c, "Restoring replaces the local session and contacts. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.App.Writer, "Restore canceled")
			return nil
		}
	}

	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	bar := output.NewProgressBar(c.App.ErrWriter, "Restoring")
	bar.SetTotal(info.Size())
	r := bar.Reader(f)
	if !c.Bool("verbose") {
		r = f
	}
	if err := rt.Store.Import(c.Context, r); err != nil {
		return err
	}
	if c.Bool("verbose") {
		bar.Finish()
	}

	if err := rt.reload(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Restored %s\n", path)
	return nil
}
