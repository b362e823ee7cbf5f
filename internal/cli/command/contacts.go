package command

import (
	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// ContactsCommand returns the contacts subcommand group.
func ContactsCommand() *cli.Command {
	return &cli.Command{
		Name:    "contacts",
		Aliases: []string{"contact", "c"},
		Usage:   "Manage contacts",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List contacts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Only contacts whose name contains this text (case-insensitive)",
					},
				},
				Action: contactsList,
			},
			{
				Name:      "add",
				Usage:     "Add a contact",
				ArgsUsage: "NAME [NUMBER]",
				Action:    contactsAdd,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a contact",
				ArgsUsage: "ID",
				Action:    contactsDelete,
			},
		},
	}
}

func contactsList(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}
	fresh, err := rt.start(c.Context)
	if err != nil {
		return err
	}
	pb, err := rt.requireLogin(c.Context)
	if err != nil {
		return err
	}

	// A fresh start has just listed; later calls in the shell resync.
	if !fresh || !pb.Synchronizer().Loaded() {
		if _, err := pb.SyncContacts(c.Context); err != nil {
			return err
		}
	}
	rt.warnOffline(c.App.ErrWriter)

	list := pb.Contacts(c.String("filter"))
	if list == nil {
		list = domain.ContactList{}
	}
	if err := p.print(list); err != nil {
		return err
	}
	if p.table() {
		p.notice("\n%d %s", len(list), plural(len(list), "contact"))
	}
	return nil
}

func contactsAdd(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return domain.ErrContactNameRequired.WithDetails("usage: contacts add NAME [NUMBER]")
	}
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}
	pb, err := rt.requireLogin(c.Context)
	if err != nil {
		return err
	}

	contact, err := pb.AddContact(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	rt.warnOffline(c.App.ErrWriter)

	if contact.IsLocal() {
		p.notice("Added %s (saved locally as %s)", contact.Name, contact.ID)
	} else {
		p.notice("Added %s (%s)", contact.Name, contact.ID)
	}
	if p.table() {
		return nil
	}
	return p.print(contact)
}

func contactsDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrBadRequest.WithDetails("usage: contacts delete ID")
	}
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}
	pb, err := rt.requireLogin(c.Context)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if err := pb.DeleteContact(c.Context, id); err != nil {
		return err
	}
	rt.warnOffline(c.App.ErrWriter)
	p.notice("Deleted %s", id)
	return nil
}
