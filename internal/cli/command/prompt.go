package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// readSecret reads a secret from the terminal with echo disabled. When
// input is not a terminal, one line is read from it instead.
func readSecret(c *cli.Context, label string) (string, error) {
	if f := terminal(c); f != nil {
		fmt.Fprintf(c.App.ErrWriter, "%s: ", label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}

	line, err := readLine(c.App.Reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return line, nil
}

// confirm asks a yes/no question on ErrWriter. Anything but y or yes is no.
func confirm(c *cli.Context, question string) (bool, error) {
	fmt.Fprintf(c.App.ErrWriter, "%s [y/N]: ", question)
	line, err := readLine(c.App.Reader)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine reads up to the next newline one byte at a time, so nothing
// past the line is consumed from a reader shared with the shell.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return strings.TrimRight(sb.String(), "\r"), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return strings.TrimRight(sb.String(), "\r"), nil
			}
			return "", err
		}
	}
}

// terminal returns the terminal behind the app input, or nil. Inside the
// shell the input is buffered, so the shell records the terminal in the
// app metadata.
func terminal(c *cli.Context) *os.File {
	f, ok := c.App.Reader.(*os.File)
	if !ok {
		f, ok = c.App.Metadata[metaTTY].(*os.File)
	}
	if ok && term.IsTerminal(int(f.Fd())) {
		return f
	}
	return nil
}
