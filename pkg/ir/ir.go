// Package ir is the three-address form the host-native backend lowers
// QuinLang into before it is spelled out as QBE IL.
package ir

import (
	"fmt"

	"github.com/quinlang/qlc/pkg/types"
)

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpExtSH
	OpCEq
	OpCNeq
	OpCLt
	OpCGt
	OpCLe
	OpCGe
	OpJmp
	OpJnz
	OpRet
	OpCall
)

type Type int

const (
	TypeNone Type = iota
	TypeW         // word (32-bit)
	TypeL         // long (64-bit)
)

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type Global struct{ Name string }
type Temporary struct{ Name string; ID int }
type Label struct{ Name string }

func (c *Const) isValue()     {}
func (g *Global) isValue()    {}
func (t *Temporary) isValue() {}
func (l *Label) isValue()     {}

func (c *Const) String() string     { return fmt.Sprintf("%d", c.Value) }
func (g *Global) String() string    { return g.Name }
func (t *Temporary) String() string { return t.Name }
func (l *Label) String() string     { return l.Name }

type Func struct {
	Name       string
	Params     []*Param
	ReturnType Type
	Blocks     []*BasicBlock
}

type Param struct{ Name string; Typ Type; Val Value }

type BasicBlock struct{ Label *Label; Instructions []*Instruction }

// Instruction is one IL operation. ArgTypes is only set for calls.
type Instruction struct {
	Op       Op
	Typ      Type
	Result   Value
	Args     []Value
	ArgTypes []Type
	Align    int
}

// StringData is a pooled literal; the backend appends a NUL.
type StringData struct{ Label, Value string }

type Program struct {
	Strings    []StringData
	Funcs      []*Func
	ExtrnFuncs []string
	WordSize   int
}

// GetType maps a QuinLang type to the IL type that carries it. Strings are
// pointers and take the target's word.
func GetType(t types.Type, wordSize int) Type {
	switch t {
	case types.Void:
		return TypeNone
	case types.Str:
		return typeFromSize(wordSize)
	default:
		return TypeW
	}
}

func typeFromSize(size int) Type {
	if size == 8 {
		return TypeL
	}
	return TypeW
}

func SizeOfType(t Type, wordSize int) int64 {
	switch t {
	case TypeW:
		return 4
	case TypeL:
		return 8
	default:
		return int64(wordSize)
	}
}

func (p *Program) AddExtrn(name string) {
	for _, x := range p.ExtrnFuncs {
		if x == name {
			return
		}
	}
	p.ExtrnFuncs = append(p.ExtrnFuncs, name)
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
