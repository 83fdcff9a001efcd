package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/ir"
	"github.com/quinlang/qlc/pkg/typeChecker"
)

type qbeBackend struct {
	out  *strings.Builder
	prog *ir.Program
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR lowers prog and spells it out as QBE IL.
func (b *qbeBackend) GenerateIR(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (string, error) {
	irProg, err := NewContext(cfg, info).GenerateIR(prog)
	if err != nil {
		return "", err
	}

	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.prog = irProg
	b.gen()
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) gen() {
	for _, s := range b.prog.Strings {
		fmt.Fprintf(b.out, "data $%s = { b %s, b 0 }\n", s.Label, strconv.Quote(s.Value))
	}
	for _, fn := range b.prog.Funcs {
		b.genFunc(fn)
	}
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	retTypeStr := b.formatType(fn.ReturnType)
	if retTypeStr != "" {
		retTypeStr = " " + retTypeStr
	}

	fmt.Fprintf(b.out, "\nexport function%s $%s(", retTypeStr, fn.Name)
	for i, p := range fn.Params {
		fmt.Fprintf(b.out, "%s %s", b.formatType(p.Typ), b.formatValue(p.Val))
		if i < len(fn.Params)-1 {
			b.out.WriteString(", ")
		}
	}
	b.out.WriteString(") {\n")

	for _, block := range fn.Blocks {
		b.genBlock(block)
	}
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genBlock(block *ir.BasicBlock) {
	fmt.Fprintf(b.out, "@%s\n", block.Label.Name)
	for _, instr := range block.Instructions {
		b.genInstr(instr)
	}
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) {
	b.out.WriteString("\t")
	if instr.Op == ir.OpCall {
		b.genCall(instr)
		return
	}

	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}
	b.out.WriteString(b.formatOp(instr))

	for i, arg := range instr.Args {
		if arg == nil {
			continue
		}
		b.out.WriteString(" ")
		b.out.WriteString(b.formatValue(arg))
		if i < len(instr.Args)-1 {
			b.out.WriteString(",")
		}
	}
	b.out.WriteString("\n")
}

func (b *qbeBackend) genCall(instr *ir.Instruction) {
	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}

	fmt.Fprintf(b.out, "call %s(", b.formatValue(instr.Args[0]))
	for i, arg := range instr.Args[1:] {
		argType := ir.TypeW
		if i < len(instr.ArgTypes) {
			argType = instr.ArgTypes[i]
		}
		fmt.Fprintf(b.out, "%s %s", b.formatType(argType), b.formatValue(arg))
		if i < len(instr.Args)-2 {
			b.out.WriteString(", ")
		}
	}
	b.out.WriteString(")\n")
}

func (b *qbeBackend) formatValue(v ir.Value) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case *ir.Const:
		return fmt.Sprintf("%d", val.Value)
	case *ir.Global:
		return "$" + val.Name
	case *ir.Temporary:
		if val.ID == -1 {
			return "%" + val.Name
		}
		return fmt.Sprintf("%%t%d", val.ID)
	case *ir.Label:
		return "@" + val.Name
	}
	return ""
}

func (b *qbeBackend) formatType(t ir.Type) string {
	switch t {
	case ir.TypeW:
		return "w"
	case ir.TypeL:
		return "l"
	}
	return ""
}

func (b *qbeBackend) formatOp(instr *ir.Instruction) string {
	switch instr.Op {
	case ir.OpAlloc:
		if instr.Align <= 4 {
			return "alloc4"
		}
		return "alloc8"
	case ir.OpLoad:
		return "load" + b.formatType(instr.Typ)
	case ir.OpStore:
		return "store" + b.formatType(instr.Typ)
	case ir.OpAdd:
		return "add"
	case ir.OpSub:
		return "sub"
	case ir.OpMul:
		return "mul"
	case ir.OpDiv:
		return "div"
	case ir.OpNeg:
		return "neg"
	case ir.OpExtSH:
		return "extsh"
	case ir.OpCEq:
		return "ceqw"
	case ir.OpCNeq:
		return "cnew"
	case ir.OpCLt:
		return "csltw"
	case ir.OpCGt:
		return "csgtw"
	case ir.OpCLe:
		return "cslew"
	case ir.OpCGe:
		return "csgew"
	case ir.OpJmp:
		return "jmp"
	case ir.OpJnz:
		return "jnz"
	case ir.OpRet:
		return "ret"
	}
	return "unknown_op"
}
