package codegen

import (
	"fmt"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/ir"
	"github.com/quinlang/qlc/pkg/typeChecker"
	"github.com/quinlang/qlc/pkg/types"
)

// Context lowers a checked program into ir for the QBE backend. Integer
// results are sign-extended from 16 bits after every arithmetic operation so
// host programs observe the same wraparound as the 8086 build.
type Context struct {
	prog         *ir.Program
	info         *typeChecker.Context
	cfg          *config.Config
	tempCount    int
	labelCount   int
	currentFunc  *ir.Func
	currentBlock *ir.BasicBlock
	slots        map[*typeChecker.Symbol]ir.Value
	wordSize     int
}

func NewContext(cfg *config.Config, info *typeChecker.Context) *Context {
	return &Context{
		prog:     &ir.Program{WordSize: cfg.WordSize},
		info:     info,
		cfg:      cfg,
		wordSize: cfg.WordSize,
	}
}

func (ctx *Context) newTemp() *ir.Temporary {
	t := &ir.Temporary{ID: ctx.tempCount}
	ctx.tempCount++
	return t
}

func (ctx *Context) newLabel() *ir.Label {
	l := &ir.Label{Name: fmt.Sprintf("L%d", ctx.labelCount)}
	ctx.labelCount++
	return l
}

func (ctx *Context) startBlock(label *ir.Label) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

func (ctx *Context) addInstr(instr *ir.Instruction) {
	if ctx.currentBlock == nil {
		ctx.startBlock(ctx.newLabel())
	}
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, instr)
}

func (ctx *Context) addString(value string) ir.Value {
	label := fmt.Sprintf("str.%d", len(ctx.prog.Strings))
	ctx.prog.Strings = append(ctx.prog.Strings, ir.StringData{Label: label, Value: value})
	return &ir.Global{Name: label}
}

func (ctx *Context) irType(t types.Type) ir.Type { return ir.GetType(t, ctx.wordSize) }

func (ctx *Context) typeOf(node *ast.Node) (types.Type, error) {
	t, ok := ctx.info.TypeOf(node)
	if !ok {
		return t, internalErr(node, "no type recorded for %s expression", node.Type)
	}
	return t, nil
}

func (ctx *Context) slotOf(node *ast.Node) (*typeChecker.Symbol, ir.Value, error) {
	sym, ok := ctx.info.SymbolOf(node)
	if !ok {
		return nil, nil, internalErr(node, "unresolved name in %s", node.Type)
	}
	slot, ok := ctx.slots[sym]
	if !ok {
		return nil, nil, internalErr(node, "no stack slot for '%s'", sym.Name)
	}
	return sym, slot, nil
}

// GenerateIR lowers every function of prog.
func (ctx *Context) GenerateIR(prog *ast.Program) (*ir.Program, error) {
	for _, fn := range prog.Functions {
		if err := ctx.codegenFuncDecl(fn); err != nil {
			return nil, err
		}
	}
	return ctx.prog, nil
}

func (ctx *Context) codegenFuncDecl(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	sig := ctx.info.Functions[d.Name]
	fn := &ir.Func{Name: d.Name, ReturnType: ctx.irType(sig.Ret)}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)
	ctx.currentFunc, ctx.currentBlock = fn, nil
	ctx.slots = make(map[*typeChecker.Symbol]ir.Value)
	defer func() { ctx.currentFunc, ctx.currentBlock, ctx.slots = nil, nil, nil }()

	ctx.startBlock(&ir.Label{Name: "start"})
	for _, sym := range ctx.info.Locals(d.Name) {
		typ := ctx.irType(sym.Type)
		slot := &ir.Temporary{Name: fmt.Sprintf("%s.%d.addr", sym.Name, sym.ID), ID: -1}
		size := ir.SizeOfType(typ, ctx.wordSize)
		ctx.addInstr(&ir.Instruction{Op: ir.OpAlloc, Typ: ir.TypeL, Result: slot, Args: []ir.Value{&ir.Const{Value: size}}, Align: int(size)})
		ctx.slots[sym] = slot

		if sym.Param >= 0 {
			param := &ir.Param{Name: sym.Name, Typ: typ, Val: &ir.Temporary{Name: fmt.Sprintf("p.%s", sym.Name), ID: -1}}
			fn.Params = append(fn.Params, param)
			ctx.addInstr(&ir.Instruction{Op: ir.OpStore, Typ: typ, Args: []ir.Value{param.Val, slot}})
		}
	}

	if err := ctx.codegenStmts(d.Body.Data.(ast.BlockNode).Stmts); err != nil {
		return err
	}

	var retVal ir.Value
	if fn.ReturnType != ir.TypeNone {
		retVal = &ir.Const{Value: 0}
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{retVal}})
	return nil
}

func (ctx *Context) codegenStmts(stmts []*ast.Node) error {
	for _, stmt := range stmts {
		if err := ctx.codegenStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.ExprStmtNode:
		_, err := ctx.codegenExpr(d.Expr)
		return err
	case ast.VarDeclNode:
		var val ir.Value = &ir.Const{Value: 0}
		if d.Init != nil {
			v, err := ctx.codegenExpr(d.Init)
			if err != nil {
				return err
			}
			val = v
		}
		return ctx.codegenStore(node, val)
	case ast.AssignNode:
		val, err := ctx.codegenExpr(d.Value)
		if err != nil {
			return err
		}
		return ctx.codegenStore(node, val)
	case ast.PrintNode:
		return ctx.codegenPrint(d)
	case ast.ReturnNode:
		return ctx.codegenReturn(d)
	case ast.IfNode:
		return ctx.codegenIf(d)
	case ast.WhileNode:
		return ctx.codegenWhile(d)
	case ast.BlockNode:
		return ctx.codegenStmts(d.Stmts)
	}
	return internalErr(node, "unhandled %s statement", node.Type)
}

func (ctx *Context) codegenStore(node *ast.Node, val ir.Value) error {
	sym, slot, err := ctx.slotOf(node)
	if err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpStore, Typ: ctx.irType(sym.Type), Args: []ir.Value{val, slot}})
	return nil
}

func (ctx *Context) codegenPrint(d ast.PrintNode) error {
	val, err := ctx.codegenExpr(d.Value)
	if err != nil {
		return err
	}
	t, err := ctx.typeOf(d.Value)
	if err != nil {
		return err
	}
	routine := ctx.cfg.Runtime.PrintInt
	if t == types.Str {
		routine = ctx.cfg.Runtime.PrintStr
	}
	ctx.prog.AddExtrn(routine)
	ctx.addInstr(&ir.Instruction{
		Op:       ir.OpCall,
		Args:     []ir.Value{&ir.Global{Name: routine}, val},
		ArgTypes: []ir.Type{ctx.irType(t)},
	})
	return nil
}

func (ctx *Context) codegenReturn(d ast.ReturnNode) error {
	var retVal ir.Value
	if d.Expr != nil {
		v, err := ctx.codegenExpr(d.Expr)
		if err != nil {
			return err
		}
		retVal = v
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{retVal}})
	ctx.currentBlock = nil
	return nil
}

func (ctx *Context) codegenIf(d ast.IfNode) error {
	thenL, elseL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	cond, err := ctx.codegenExpr(d.Cond)
	if err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond, thenL, elseL}})

	ctx.startBlock(thenL)
	if err := ctx.codegenStmt(d.ThenBody); err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{endL}})

	ctx.startBlock(elseL)
	if d.ElseBody != nil {
		if err := ctx.codegenStmt(d.ElseBody); err != nil {
			return err
		}
	}
	ctx.startBlock(endL)
	return nil
}

func (ctx *Context) codegenWhile(d ast.WhileNode) error {
	startL, bodyL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	ctx.startBlock(startL)
	cond, err := ctx.codegenExpr(d.Cond)
	if err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond, bodyL, endL}})

	ctx.startBlock(bodyL)
	if err := ctx.codegenStmt(d.Body); err != nil {
		return err
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{startL}})

	ctx.startBlock(endL)
	return nil
}
