package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/token"
	"golang.org/x/term"
)

// Kind classifies a Diagnostic by the stage that produced it.
type Kind int

const (
	LexicalError Kind = iota
	ParseError
	SemanticError
	CodegenError
	Warning
)

var kindNames = map[Kind]string{
	LexicalError:  "lexical error",
	ParseError:    "parse error",
	SemanticError: "semantic error",
	CodegenError:  "codegen error",
	Warning:       "warning",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Diagnostic is the error type shared by every stage. Warnings use the same
// type with Kind set to Warning and Flag naming the -W switch.
type Diagnostic struct {
	Kind Kind
	Tok  token.Token
	Msg  string
	Flag string
}

func (d *Diagnostic) Error() string {
	if d.Tok.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Tok.Line, d.Tok.Column, d.Kind, d.Msg)
}

// Errorf builds a Diagnostic anchored at tok.
func Errorf(kind Kind, tok token.Token, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// Warn returns nil when wt is disabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...any) *Diagnostic {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return nil
	}
	return &Diagnostic{Kind: Warning, Tok: tok, Msg: fmt.Sprintf(format, args...), Flag: cfg.Warnings[wt].Name}
}

// AsDiagnostic unwraps err to the Diagnostic that caused it, if any.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Warnings collects the warnings a stage raises while it runs.
type Warnings struct {
	list []*Diagnostic
}

func (w *Warnings) Add(d *Diagnostic) {
	if d != nil {
		w.list = append(w.list, d)
	}
}

func (w *Warnings) List() []*Diagnostic { return w.list }

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Printer renders diagnostics as "file:line:col: error: msg" followed by the
// offending source line and a caret under the token.
type Printer struct {
	w     io.Writer
	file  SourceFileRecord
	color bool
}

func NewPrinter(w io.Writer, file SourceFileRecord) *Printer {
	p := &Printer{w: w, file: file}
	if f, ok := w.(*os.File); ok {
		p.color = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *Printer) SetColor(enabled bool) { p.color = enabled }

func (p *Printer) paint(c pterm.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

// Print renders err. Errors that are not Diagnostics print as a bare line.
func (p *Printer) Print(err error) {
	d, ok := AsDiagnostic(err)
	if !ok {
		fmt.Fprintf(p.w, "%s: %s %v\n", p.file.Name, p.paint(pterm.FgRed, "error:"), err)
		return
	}

	label := p.paint(pterm.FgRed, "error:")
	suffix := ""
	if d.Kind == Warning {
		label = p.paint(pterm.FgYellow, "warning:")
		if d.Flag != "" {
			suffix = fmt.Sprintf(" [-W%s]", d.Flag)
		}
	}
	fmt.Fprintf(p.w, "%s:%d:%d: %s %s%s\n", p.file.Name, d.Tok.Line, d.Tok.Column, label, d.Msg, suffix)
	p.printErrorLine(d.Tok)
}

func (p *Printer) PrintAll(diags []*Diagnostic) {
	for _, d := range diags {
		p.Print(d)
	}
}

func (p *Printer) printErrorLine(tok token.Token) {
	line, ok := SourceLine(p.file.Content, tok.Line)
	if !ok {
		return
	}
	fmt.Fprintf(p.w, "  %s\n", line)

	col := max(tok.Column, 1)
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(p.w, "  %s%s\n", strings.Repeat(" ", col-1), p.paint(pterm.FgGreen, caret))
}

// SourceLine returns the 1-based line n of content without its newline.
func SourceLine(content []rune, n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	lineStart := 0
	for i, r := range content {
		if n <= 1 {
			break
		}
		if r == '\n' {
			n--
			lineStart = i + 1
		}
	}
	if n > 1 {
		return "", false
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}
	return string(content[lineStart:lineEnd]), true
}
