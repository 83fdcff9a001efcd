package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func newTestSet() (*FlagSet, *string, *bool, *[]string) {
	fs := NewFlagSet("qlc")
	var out string
	var verbose bool
	var defs []string
	fs.String(&out, "output", "o", "a.asm", "Output file", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Verbose")
	fs.List(&defs, "define", "D", nil, "Define", "name")
	return fs, &out, &verbose, &defs
}

func TestParseLongAndShortForms(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		out     string
		verbose bool
		rest    []string
	}{
		{"defaults", []string{"main.ql"}, "a.asm", false, []string{"main.ql"}},
		{"long with equals", []string{"--output=x.asm", "main.ql"}, "x.asm", false, []string{"main.ql"}},
		{"long separate", []string{"--output", "x.asm"}, "x.asm", false, []string{}},
		{"single dash long", []string{"-output=y.asm"}, "y.asm", false, []string{}},
		{"shorthand separate", []string{"-o", "z.asm", "-v"}, "z.asm", true, []string{}},
		{"shorthand attached", []string{"-oz.asm"}, "z.asm", false, []string{}},
		{"double dash stops", []string{"-v", "--", "-o", "f"}, "a.asm", true, []string{"-o", "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, out, verbose, _ := newTestSet()
			be.Err(t, fs.Parse(tt.args), nil)
			be.Equal(t, *out, tt.out)
			be.Equal(t, *verbose, tt.verbose)
			be.Equal(t, fs.Args(), tt.rest)
		})
	}
}

func TestParseListAccumulates(t *testing.T) {
	fs, _, _, defs := newTestSet()
	be.Err(t, fs.Parse([]string{"-D", "a", "--define=b", "-Dc"}), nil)
	be.Equal(t, *defs, []string{"a", "b", "c"})
}

func TestParseErrors(t *testing.T) {
	fs, _, _, _ := newTestSet()
	be.Err(t, fs.Parse([]string{"--nope"}), "unknown flag: --nope")

	fs, _, _, _ = newTestSet()
	be.Err(t, fs.Parse([]string{"-q"}), "unknown flag: -q")

	fs, _, _, _ = newTestSet()
	be.Err(t, fs.Parse([]string{"-o"}), "flag needs an argument: -o")

	fs, _, _, _ = newTestSet()
	be.Err(t, fs.Parse([]string{"--verbose=maybe"}), "invalid boolean value")
}

func TestFlagGroups(t *testing.T) {
	fs := NewFlagSet("qlc")
	entries := []FlagGroupEntry{
		{Name: "shadow", Prefix: "W", Usage: "Warn about shadowing", Enabled: new(bool), Disabled: new(bool)},
		{Name: "overflow", Prefix: "W", Usage: "Warn about overflow", Enabled: new(bool), Disabled: new(bool)},
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable warnings", "warning", "Available Warnings:", entries)

	be.Err(t, fs.Parse([]string{"-Wshadow", "-Wno-overflow", "in.ql"}), nil)
	be.True(t, *entries[0].Enabled)
	be.True(t, !*entries[0].Disabled)
	be.True(t, !*entries[1].Enabled)
	be.True(t, *entries[1].Disabled)
	be.Equal(t, fs.Args(), []string{"in.ql"})
	be.True(t, fs.Lookup("Wno-shadow") != nil)
}

func TestHelpPage(t *testing.T) {
	app := NewApp("qlc")
	app.Synopsis = "[options] <input.ql>"
	app.Description = "Compiles QuinLang."
	var stdout, stderr bytes.Buffer
	app.Stdout, app.Stderr = &stdout, &stderr

	var out string
	app.FlagSet.String(&out, "output", "o", "build/out.asm", "Place the output into <file>.", "file")
	app.FlagSet.AddFlagGroup("Feature Flags", "Toggle features", "feature", "Available Features:", []FlagGroupEntry{
		{Name: "fold", Prefix: "F", Usage: "Fold constants", Enabled: new(bool), Disabled: new(bool)},
	})
	called := false
	app.Action = func([]string) error { called = true; return nil }

	be.Err(t, app.Run([]string{"--help"}), nil)
	be.True(t, !called)

	help := stdout.String()
	be.True(t, strings.Contains(help, "qlc [options] <input.ql>"))
	be.True(t, strings.Contains(help, "-o, --output <file>"))
	be.True(t, strings.Contains(help, "|build/out.asm|"))
	be.True(t, strings.Contains(help, "-F<feature>"))
	be.True(t, strings.Contains(help, "-Fno-<feature>"))
	be.True(t, strings.Contains(help, "fold"))
	be.True(t, !strings.Contains(help, "--Ffold"))
	be.Equal(t, stderr.Len(), 0)
}

func TestRunPassesPositionalArgs(t *testing.T) {
	app := NewApp("qlc")
	var stderr bytes.Buffer
	app.Stderr = &stderr
	var got []string
	app.Action = func(args []string) error { got = args; return nil }

	be.Err(t, app.Run([]string{"a.ql", "b.ql"}), nil)
	be.Equal(t, got, []string{"a.ql", "b.ql"})

	app = NewApp("qlc")
	app.Stderr = &stderr
	be.Err(t, app.Run([]string{"--bogus"}))
	be.True(t, strings.Contains(stderr.String(), "Usage: qlc"))
}

func TestWrapText(t *testing.T) {
	be.Equal(t, wrapText("one two three four", 9), []string{"one two", "three", "four"})
	be.Equal(t, len(wrapText("   ", 10)), 0)
}
