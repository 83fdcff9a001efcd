package codegen

import (
	"bytes"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/typeChecker"
	"github.com/quinlang/qlc/pkg/types"
	"github.com/quinlang/qlc/pkg/util"
)

// i8086Word is the machine word of the 8086; every frame slot and pushed
// argument occupies one.
const i8086Word = 2

type i8086Backend struct{}

func NewI8086Backend() Backend { return &i8086Backend{} }

func (b *i8086Backend) Generate(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (*bytes.Buffer, error) {
	em := NewEmitter()
	if err := newGenerator(em, info, cfg).genProgram(prog); err != nil {
		return nil, err
	}
	return bytes.NewBufferString(em.Render(cfg.Runtime.Terminator)), nil
}

// generator lowers to a single-accumulator stack machine: every expression
// leaves its value in AX, binary operators park the left operand on the
// stack and recover it into BX.
type generator struct {
	em     *Emitter
	info   *typeChecker.Context
	cfg    *config.Config
	rt     config.Runtime
	layout *FrameLayout
}

func newGenerator(em *Emitter, info *typeChecker.Context, cfg *config.Config) *generator {
	return &generator{em: em, info: info, cfg: cfg, rt: cfg.Runtime}
}

var condJumps = map[token.Type]string{
	token.EqEq: "je",
	token.Neq:  "jne",
	token.Lt:   "jl",
	token.Lte:  "jle",
	token.Gt:   "jg",
	token.Gte:  "jge",
}

func internalErr(node *ast.Node, format string, args ...any) error {
	return util.Errorf(util.CodegenError, node.Tok, format, args...)
}

func (g *generator) typeOf(node *ast.Node) (types.Type, error) {
	t, ok := g.info.TypeOf(node)
	if !ok {
		return t, internalErr(node, "no type recorded for %s expression", node.Type)
	}
	return t, nil
}

func (g *generator) slot(node *ast.Node) (string, error) {
	sym, ok := g.info.SymbolOf(node)
	if !ok {
		return "", internalErr(node, "unresolved name in %s", node.Type)
	}
	operand, ok := g.layout.Operand(sym)
	if !ok {
		return "", internalErr(node, "no frame slot for '%s'", sym.Name)
	}
	return operand, nil
}

func (g *generator) genProgram(prog *ast.Program) error {
	for _, fn := range prog.Functions {
		if err := g.genFuncDecl(fn); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genFuncDecl(fn *ast.Node) error {
	d := fn.Data.(ast.FuncDeclNode)
	g.layout = BuildFrameLayout(g.info.Locals(d.Name), i8086Word)
	defer func() { g.layout = nil }()

	g.em.Global(d.Name)
	g.em.Emit("push bp")
	g.em.Emit("mov bp, sp")
	if g.layout.Size > 0 {
		g.em.Emit("sub sp, %d", g.layout.Size)
	}

	for _, stmt := range d.Body.Data.(ast.BlockNode).Stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	g.genEpilogue()
	return nil
}

func (g *generator) genEpilogue() {
	g.em.Emit("mov sp, bp")
	g.em.Emit("pop bp")
	g.em.Emit("ret")
}

func (g *generator) genStmt(stmt *ast.Node) error {
	switch d := stmt.Data.(type) {
	case ast.ExprStmtNode:
		return g.genExpr(d.Expr)
	case ast.VarDeclNode:
		if d.Init != nil {
			if err := g.genExpr(d.Init); err != nil {
				return err
			}
		} else {
			g.em.Emit("mov ax, 0")
		}
		return g.genStore(stmt)
	case ast.AssignNode:
		if err := g.genExpr(d.Value); err != nil {
			return err
		}
		return g.genStore(stmt)
	case ast.PrintNode:
		return g.genPrint(d)
	case ast.ReturnNode:
		if d.Expr != nil {
			if err := g.genExpr(d.Expr); err != nil {
				return err
			}
		}
		g.genEpilogue()
		return nil
	case ast.IfNode:
		return g.genIf(d)
	case ast.WhileNode:
		return g.genWhile(d)
	case ast.BlockNode:
		return g.genStmts(d.Stmts)
	}
	return internalErr(stmt, "unhandled %s statement", stmt.Type)
}

func (g *generator) genStmts(stmts []*ast.Node) error {
	for _, stmt := range stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genStore(stmt *ast.Node) error {
	dst, err := g.slot(stmt)
	if err != nil {
		return err
	}
	g.em.Emit("mov %s, ax", dst)
	return nil
}

func (g *generator) genPrint(d ast.PrintNode) error {
	if err := g.genExpr(d.Value); err != nil {
		return err
	}
	t, err := g.typeOf(d.Value)
	if err != nil {
		return err
	}
	if t == types.Str {
		g.em.Extern(g.rt.PrintStr)
		g.em.Emit("mov dx, ax")
		g.em.Emit("call %s", g.rt.PrintStr)
		return nil
	}
	g.em.Extern(g.rt.PrintInt)
	g.em.Emit("call %s", g.rt.PrintInt)
	return nil
}

func (g *generator) genBlock(block *ast.Node) error {
	return g.genStmts(block.Data.(ast.BlockNode).Stmts)
}

func (g *generator) genIf(d ast.IfNode) error {
	elseLabel := g.em.UniqueLabel("ELSE")
	endLabel := g.em.UniqueLabel("ENDIF")

	if err := g.genExpr(d.Cond); err != nil {
		return err
	}
	g.em.Emit("cmp ax, 0")
	g.em.Emit("je %s", elseLabel)
	if err := g.genBlock(d.ThenBody); err != nil {
		return err
	}
	g.em.Emit("jmp %s", endLabel)
	g.em.Label(elseLabel)
	if d.ElseBody != nil {
		if err := g.genBlock(d.ElseBody); err != nil {
			return err
		}
	}
	g.em.Label(endLabel)
	return nil
}

func (g *generator) genWhile(d ast.WhileNode) error {
	topLabel := g.em.UniqueLabel("WHL")
	endLabel := g.em.UniqueLabel("WEND")

	g.em.Label(topLabel)
	if err := g.genExpr(d.Cond); err != nil {
		return err
	}
	g.em.Emit("cmp ax, 0")
	g.em.Emit("je %s", endLabel)
	if err := g.genBlock(d.Body); err != nil {
		return err
	}
	g.em.Emit("jmp %s", topLabel)
	g.em.Label(endLabel)
	return nil
}

func (g *generator) genExpr(node *ast.Node) error {
	if _, err := g.typeOf(node); err != nil {
		return err
	}

	switch d := node.Data.(type) {
	case ast.NumberNode:
		g.em.Emit("mov ax, %d", d.Value)
	case ast.BoolNode:
		if d.Value {
			g.em.Emit("mov ax, 1")
		} else {
			g.em.Emit("mov ax, 0")
		}
	case ast.StringNode:
		g.em.Emit("mov ax, %s", g.em.AddString(d.Value))
	case ast.IdentNode:
		src, err := g.slot(node)
		if err != nil {
			return err
		}
		g.em.Emit("mov ax, %s", src)
	case ast.UnaryOpNode:
		return g.genUnaryOp(node, d)
	case ast.BinaryOpNode:
		return g.genBinaryOp(node, d)
	case ast.FuncCallNode:
		return g.genFuncCall(d)
	default:
		return internalErr(node, "unhandled %s expression", node.Type)
	}
	return nil
}

func (g *generator) genUnaryOp(node *ast.Node, d ast.UnaryOpNode) error {
	if err := g.genExpr(d.Expr); err != nil {
		return err
	}
	switch d.Op {
	case token.Minus:
		g.em.Emit("neg ax")
	case token.Not:
		skip := g.em.UniqueLabel("NOT")
		g.em.Emit("cmp ax, 0")
		g.em.Emit("mov ax, 0")
		g.em.Emit("jne %s", skip)
		g.em.Emit("mov ax, 1")
		g.em.Label(skip)
	default:
		return internalErr(node, "unhandled unary operator '%s'", d.Op)
	}
	return nil
}

func (g *generator) genBinaryOp(node *ast.Node, d ast.BinaryOpNode) error {
	if err := g.genExpr(d.Left); err != nil {
		return err
	}
	g.em.Emit("push ax")
	if err := g.genExpr(d.Right); err != nil {
		return err
	}
	g.em.Emit("pop bx")

	switch d.Op {
	case token.Plus:
		g.em.Emit("add ax, bx")
		return nil
	case token.Star:
		g.em.Emit("imul bx")
		return nil
	case token.Minus:
		g.em.Emit("xchg ax, bx")
		g.em.Emit("sub ax, bx")
		return nil
	case token.Slash:
		g.em.Emit("xchg ax, bx")
		g.em.Emit("cwd")
		g.em.Emit("idiv bx")
		return nil
	}

	jcc, ok := condJumps[d.Op]
	if !ok {
		return internalErr(node, "unhandled binary operator '%s'", d.Op)
	}
	lt, err := g.typeOf(d.Left)
	if err != nil {
		return err
	}
	if lt == types.Str {
		g.em.Extern(g.rt.StrCmp)
		g.em.Emit("mov si, bx")
		g.em.Emit("mov di, ax")
		g.em.Emit("call %s", g.rt.StrCmp)
		g.em.Emit("cmp ax, 0")
	} else {
		g.em.Emit("cmp bx, ax")
	}
	g.genSetCond(jcc)
	return nil
}

// genSetCond turns the flags of the preceding cmp into 0 or 1 in AX.
func (g *generator) genSetCond(jcc string) {
	trueLabel := g.em.UniqueLabel("T")
	endLabel := g.em.UniqueLabel("E")
	g.em.Emit("%s %s", jcc, trueLabel)
	g.em.Emit("xor ax, ax")
	g.em.Emit("jmp %s", endLabel)
	g.em.Label(trueLabel)
	g.em.Emit("mov ax, 1")
	g.em.Label(endLabel)
}

// genFuncCall pushes arguments right to left so parameter 0 ends up
// nearest the return address; the caller pops them.
func (g *generator) genFuncCall(d ast.FuncCallNode) error {
	for i := len(d.Args) - 1; i >= 0; i-- {
		if err := g.genExpr(d.Args[i]); err != nil {
			return err
		}
		g.em.Emit("push ax")
	}
	g.em.Emit("call %s", d.Name)
	if n := len(d.Args); n > 0 {
		g.em.Emit("add sp, %d", n*i8086Word)
	}
	return nil
}
