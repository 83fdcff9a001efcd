package codegen

import (
	"fmt"
	"strconv"
	"strings"
)

// PooledString is one entry of the emitter's string pool.
type PooledString struct {
	Label string
	Value string
}

// Emitter accumulates the instruction stream of one compilation. It also
// owns the string pool and the label counters, so two Emitters never share
// label names' numbering state.
type Emitter struct {
	text     []string
	pool     []PooledString
	counters map[string]int
	externs  []string
	globals  map[string]bool
}

func NewEmitter() *Emitter {
	return &Emitter{counters: make(map[string]int), globals: make(map[string]bool)}
}

// Emit appends one instruction.
func (e *Emitter) Emit(format string, args ...any) {
	e.text = append(e.text, "    "+fmt.Sprintf(format, args...))
}

// Label places name at the current position.
func (e *Emitter) Label(name string) {
	e.text = append(e.text, name+":")
}

// Global exports name and places it as a label.
func (e *Emitter) Global(name string) {
	e.globals[name] = true
	e.text = append(e.text, "global "+name, name+":")
}

// Extern declares a routine supplied at link time. Repeats are ignored.
func (e *Emitter) Extern(name string) {
	for _, x := range e.externs {
		if x == name {
			return
		}
	}
	e.externs = append(e.externs, name)
}

// UniqueLabel returns a fresh local label ".PREFIXn". Each prefix counts
// independently from 0.
func (e *Emitter) UniqueLabel(prefix string) string {
	n := e.counters[prefix]
	e.counters[prefix] = n + 1
	return fmt.Sprintf(".%s%d", prefix, n)
}

// AddString pools value under a new label. Equal strings are not merged.
func (e *Emitter) AddString(value string) string {
	label := fmt.Sprintf("str.%d", len(e.pool))
	e.pool = append(e.pool, PooledString{Label: label, Value: value})
	return label
}

func (e *Emitter) Instructions() []string { return e.text }

func (e *Emitter) Strings() []PooledString { return e.pool }

// Render produces the final NASM source. Every pooled string is followed by
// terminator, which may be empty.
func (e *Emitter) Render(terminator string) string {
	var sb strings.Builder
	sb.WriteString("bits 16\ncpu 8086\n")
	for _, name := range e.externs {
		if !e.globals[name] {
			fmt.Fprintf(&sb, "extern %s\n", name)
		}
	}

	sb.WriteString("\nsection .text\n")
	for _, line := range e.text {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	if len(e.pool) > 0 {
		sb.WriteString("\nsection .data\n")
		for _, s := range e.pool {
			data := dbOperands(s.Value)
			if term := dbOperands(terminator); term != "" {
				data = strings.TrimPrefix(data+", "+term, ", ")
			}
			if data != "" {
				fmt.Fprintf(&sb, "%s: db %s\n", s.Label, data)
			} else {
				fmt.Fprintf(&sb, "%s:\n", s.Label)
			}
		}
	}
	return sb.String()
}

// dbOperands spells s as NASM db operands: printable runs are quoted, every
// other byte (quotes included) is written as a number.
func dbOperands(s string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, "'"+run.String()+"'")
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '\'' {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, strconv.Itoa(int(c)))
	}
	flush()
	return strings.Join(parts, ", ")
}
