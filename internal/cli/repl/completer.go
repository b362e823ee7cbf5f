package repl

import (
	"sort"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "quit", "history", "help"}

// Completer knows the command words of the shell.
type Completer struct {
	commands []string // "contacts", "contacts add", ...
	top      map[string]bool
}

// NewCompleter creates a completer for commands, each given as its full
// word path ("contacts add"). Aliases may be listed too.
func NewCompleter(commands []string) *Completer {
	c := &Completer{top: make(map[string]bool)}
	for _, cmd := range append(append([]string{}, commands...), builtins...) {
		cmd = strings.Join(strings.Fields(cmd), " ")
		if cmd == "" {
			continue
		}
		c.commands = append(c.commands, cmd)
		c.top[strings.Fields(cmd)[0]] = true
	}
	sort.Strings(c.commands)
	return c
}

// Known reports whether word is a top-level command.
func (c *Completer) Known(word string) bool {
	return c.top[word]
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var out []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			out = append(out, cmd)
		}
	}
	return out
}

// Suggest returns top-level commands close to an unknown word: those it
// is a prefix of, then those sharing its first letter.
func (c *Completer) Suggest(word string) []string {
	if word == "" {
		return nil
	}
	var prefixed, similar []string
	for top := range c.top {
		switch {
		case strings.HasPrefix(top, word):
			prefixed = append(prefixed, top)
		case top[0] == word[0]:
			similar = append(similar, top)
		}
	}
	out := prefixed
	if len(out) == 0 {
		out = similar
	}
	sort.Strings(out)
	return out
}
