// Package command defines the phonebook-cli commands.
//
// It uses urfave/cli/v2 for parsing. Every command that touches the
// session or the contacts shares one Runtime, built on first use from the
// configuration file, PHONEBOOK_* environment variables and global flags,
// and closed through the shutdown handler. The shell command runs further
// commands against the same Runtime.
//
// Results go to the app Writer in the selected output format; diagnostics
// and prompts go to ErrWriter.
package command
