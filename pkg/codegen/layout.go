package codegen

import (
	"fmt"

	"github.com/quinlang/qlc/pkg/typeChecker"
)

// FrameLayout maps each local of one function to its offset from BP.
// Parameters sit above the saved BP and return address at +4, +6, ...;
// lets are packed downward from -2. Every slot is one machine word.
type FrameLayout struct {
	Offsets  map[*typeChecker.Symbol]int
	Size     int
	wordSize int
}

func BuildFrameLayout(locals []*typeChecker.Symbol, wordSize int) *FrameLayout {
	fl := &FrameLayout{Offsets: make(map[*typeChecker.Symbol]int, len(locals)), wordSize: wordSize}
	for _, sym := range locals {
		if sym.Param >= 0 {
			fl.Offsets[sym] = 2*wordSize + sym.Param*wordSize
			continue
		}
		fl.Size += wordSize
		fl.Offsets[sym] = -fl.Size
	}
	return fl
}

// Offset returns sym's slot.
func (fl *FrameLayout) Offset(sym *typeChecker.Symbol) (int, bool) {
	off, ok := fl.Offsets[sym]
	return off, ok
}

// Operand renders sym's slot as a memory operand, e.g. "[bp-2]".
func (fl *FrameLayout) Operand(sym *typeChecker.Symbol) (string, bool) {
	off, ok := fl.Offsets[sym]
	if !ok {
		return "", false
	}
	if off < 0 {
		return fmt.Sprintf("[bp-%d]", -off), true
	}
	return fmt.Sprintf("[bp+%d]", off), true
}
