package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

// DefaultPrompt is shown when no prompt function is configured.
const DefaultPrompt = "phonebook> "

// Executor runs one shell line, already split into arguments.
type Executor func(ctx context.Context, args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	prompt    func() string
	exec      Executor
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and the output streams. Errors go to errOut.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(r *REPL) {
		r.in = bufio.NewReader(in)
		r.out = out
		r.errOut = errOut
	}
}

// WithPrompt sets a function called before every line to render the prompt.
func WithPrompt(fn func() string) Option {
	return func(r *REPL) {
		r.prompt = fn
	}
}

// WithCompleter sets the known command words.
func WithCompleter(c *Completer) Option {
	return func(r *REPL) {
		r.completer = c
	}
}

// WithHistory sets the history.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// New creates a REPL that runs lines with exec.
func New(exec Executor, opts ...Option) *REPL {
	r := &REPL{
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		errOut:    os.Stderr,
		prompt:    func() string { return DefaultPrompt },
		exec:      exec,
		completer: NewCompleter(nil),
		history:   NewHistory(DefaultHistoryPath(), DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input returns the reader lines are read from. Commands that prompt
// while the shell runs must read from it, not from the original input.
func (r *REPL) Input() io.Reader {
	return r.in
}

// Run reads and executes lines until exit, end of input or ctx is done.
// A failing command is reported and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	for {
		fmt.Fprint(r.out, r.prompt())

		line, err := r.readLine(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.history.Add(line)

		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintf(r.errOut, "error: %s\n", logger.RedactString(err.Error()))
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "history":
			r.printHistory()
			continue
		}

		if !r.completer.Known(args[0]) {
			r.unknown(args[0])
			continue
		}
		if err := r.exec(ctx, args); err != nil {
			fmt.Fprintf(r.errOut, "error: %s\n", logger.RedactString(err.Error()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// readLine returns the next line, or ctx.Err() if ctx is done first.
func (r *REPL) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.in.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *REPL) printHistory() {
	entries := r.history.Entries()
	for i, e := range entries {
		fmt.Fprintf(r.out, "%4d  %s\n", i+1, e)
	}
}

func (r *REPL) unknown(word string) {
	fmt.Fprintf(r.errOut, "unknown command %q", word)
	if s := r.completer.Suggest(word); len(s) > 0 {
		fmt.Fprintf(r.errOut, ", did you mean: %s", strings.Join(s, ", "))
	}
	fmt.Fprintln(r.errOut)
}

// History returns the history of the REPL.
func (r *REPL) History() *History {
	return r.history
}
