package repl

import (
	"reflect"
	"testing"
)

func TestCompleter(t *testing.T) {
	c := NewCompleter([]string{"contacts", "contacts add", "contacts  list", "config", "login"})

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"complete top", c.Complete("con"), []string{"config", "contacts", "contacts add", "contacts list"}},
		{"complete sub", c.Complete("contacts l"), []string{"contacts list"}},
		{"complete builtin", c.Complete("hi"), []string{"history"}},
		{"complete none", c.Complete("zzz"), nil},
		{"suggest prefix", c.Suggest("co"), []string{"config", "contacts"}},
		{"suggest first letter", c.Suggest("lgn"), []string{"login"}},
		{"suggest nothing", c.Suggest("xyz"), nil},
		{"suggest empty", c.Suggest(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCompleter_Known(t *testing.T) {
	c := NewCompleter([]string{"contacts add"})
	for word, want := range map[string]bool{
		"contacts": true,
		"add":      false,
		"exit":     true,
		"help":     true,
		"":         false,
	} {
		if got := c.Known(word); got != want {
			t.Errorf("Known(%q) = %v, want %v", word, got, want)
		}
	}
}
