package command

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Aliases:   []string{"signup"},
		Usage:     "Create an account and log in",
		ArgsUsage: "NAME EMAIL",
		Flags: []cli.Flag{
			passwordFlag(),
		},
		Action: register,
	}
}

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in and load your contacts",
		ArgsUsage: "EMAIL",
		Flags: []cli.Flag{
			passwordFlag(),
		},
		Action: login,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Log out and clear local session data",
		Action: logout,
	}
}

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show or change your profile",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the logged in user",
				Action: profileShow,
			},
			{
				Name:  "update",
				Usage: "Change name, email or password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "New display name",
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "New email",
					},
					&cli.BoolFlag{
						Name:  "password",
						Usage: "Prompt for a new password",
					},
				},
				Action: profileUpdate,
			},
		},
	}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Password (prompted for when omitted)",
		EnvVars: []string{"PHONEBOOK_PASSWORD"},
	}
}

func password(c *cli.Context) (string, error) {
	if c.IsSet("password") {
		return c.String("password"), nil
	}
	return readSecret(c, "Password")
}

func register(c *cli.Context) error {
	if c.NArg() != 2 {
		return domain.ErrUserValidation.WithDetails("usage: register NAME EMAIL")
	}
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}
	pw, err := password(c)
	if err != nil {
		return err
	}

	user, err := rt.Phonebook().Register(c.Context, c.Args().Get(0), c.Args().Get(1), pw)
	if err != nil {
		return err
	}
	rt.markStarted()
	rt.warnOffline(c.App.ErrWriter)

	p.notice("Registered and logged in as %s <%s>", user.Name, user.Email)
	if p.table() {
		return nil
	}
	return p.print(user)
}

func login(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrUserValidation.WithDetails("usage: login EMAIL")
	}
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}
	pw, err := password(c)
	if err != nil {
		return err
	}

	pb := rt.Phonebook()
	user, err := pb.Login(c.Context, c.Args().First(), pw)
	if err != nil {
		return err
	}
	rt.markStarted()
	rt.warnOffline(c.App.ErrWriter)

	n := len(pb.Contacts(""))
	p.notice("Logged in as %s <%s>, %d %s", user.Name, user.Email, n, plural(n, "contact"))
	if p.table() {
		return nil
	}
	return p.print(user)
}

func logout(c *cli.Context) error {
	rt, err := runtimeFrom(c)
	if err != nil {
		return err
	}
	p, err := newPrinter(c, rt.Config.Output)
	if err != nil {
		return err
	}

	was := rt.Phonebook().Session()
	if err := rt.Phonebook().Logout(c.Context); err != nil {
		return err
	}
	rt.markStarted()

	if was.HasToken() {
		p.notice("Logged out")
	} else {
		p.notice("Not logged in")
	}
	return nil
}

func profileShow(c *cli.Context) error {
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
	rt.warnOffline(c.App.ErrWriter)
	return p.print(pb.Session().User)
}

func profileUpdate(c *cli.Context) error {
	var update domain.ProfileUpdate
	if c.IsSet("name") {
		name := c.String("name")
		update.Name = &name
	}
	if c.IsSet("email") {
		email := strings.TrimSpace(c.String("email"))
		update.Email = &email
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
	if c.Bool("password") {
		pw, err := readSecret(c, "New password")
		if err != nil {
			return err
		}
		update.Password = &pw
	}

	user, err := pb.UpdateProfile(c.Context, update)
	if err != nil {
		return err
	}
	rt.warnOffline(c.App.ErrWriter)
	p.notice("Profile updated")
	return p.print(user)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
