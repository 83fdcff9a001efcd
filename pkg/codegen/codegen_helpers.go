package codegen

import (
	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/ir"
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/types"
)

func (ctx *Context) codegenExpr(node *ast.Node) (ir.Value, error) {
	t, err := ctx.typeOf(node)
	if err != nil {
		return nil, err
	}

	switch d := node.Data.(type) {
	case ast.NumberNode:
		return &ir.Const{Value: int64(int16(d.Value))}, nil
	case ast.BoolNode:
		if d.Value {
			return &ir.Const{Value: 1}, nil
		}
		return &ir.Const{Value: 0}, nil
	case ast.StringNode:
		return ctx.addString(d.Value), nil
	case ast.IdentNode:
		_, slot, err := ctx.slotOf(node)
		if err != nil {
			return nil, err
		}
		res := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{Op: ir.OpLoad, Typ: ctx.irType(t), Result: res, Args: []ir.Value{slot}})
		return res, nil
	case ast.UnaryOpNode:
		return ctx.codegenUnaryOp(node, d)
	case ast.BinaryOpNode:
		return ctx.codegenBinaryOp(node, d)
	case ast.FuncCallNode:
		return ctx.codegenFuncCall(d, t)
	}
	return nil, internalErr(node, "unhandled %s expression", node.Type)
}

// wrap16 sign-extends the low half-word of v.
func (ctx *Context) wrap16(v ir.Value) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: ir.OpExtSH, Typ: ir.TypeW, Result: res, Args: []ir.Value{v}})
	return res
}

func (ctx *Context) codegenUnaryOp(node *ast.Node, d ast.UnaryOpNode) (ir.Value, error) {
	val, err := ctx.codegenExpr(d.Expr)
	if err != nil {
		return nil, err
	}
	res := ctx.newTemp()
	switch d.Op {
	case token.Minus:
		ctx.addInstr(&ir.Instruction{Op: ir.OpNeg, Typ: ir.TypeW, Result: res, Args: []ir.Value{val}})
		return ctx.wrap16(res), nil
	case token.Not:
		ctx.addInstr(&ir.Instruction{Op: ir.OpCEq, Typ: ir.TypeW, Result: res, Args: []ir.Value{val, &ir.Const{Value: 0}}})
		return res, nil
	}
	return nil, internalErr(node, "unhandled unary operator '%s'", d.Op)
}

func (ctx *Context) codegenBinaryOp(node *ast.Node, d ast.BinaryOpNode) (ir.Value, error) {
	lt, err := ctx.typeOf(d.Left)
	if err != nil {
		return nil, err
	}
	left, err := ctx.codegenExpr(d.Left)
	if err != nil {
		return nil, err
	}
	right, err := ctx.codegenExpr(d.Right)
	if err != nil {
		return nil, err
	}

	op, ok := getBinaryOp(d.Op)
	if !ok {
		return nil, internalErr(node, "unhandled binary operator '%s'", d.Op)
	}

	if isComparison(op) && lt == types.Str {
		strcmp := ctx.cfg.Runtime.StrCmp
		ctx.prog.AddExtrn(strcmp)
		diff := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op:       ir.OpCall,
			Typ:      ir.TypeW,
			Result:   diff,
			Args:     []ir.Value{&ir.Global{Name: strcmp}, left, right},
			ArgTypes: []ir.Type{ctx.irType(types.Str), ctx.irType(types.Str)},
		})
		left, right = diff, &ir.Const{Value: 0}
	}

	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: op, Typ: ir.TypeW, Result: res, Args: []ir.Value{left, right}})
	if isComparison(op) {
		return res, nil
	}
	return ctx.wrap16(res), nil
}

func (ctx *Context) codegenFuncCall(d ast.FuncCallNode, ret types.Type) (ir.Value, error) {
	sig := ctx.info.Functions[d.Name]
	args := []ir.Value{&ir.Global{Name: d.Name}}
	var argTypes []ir.Type
	for i, arg := range d.Args {
		val, err := ctx.codegenExpr(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
		argTypes = append(argTypes, ctx.irType(sig.Params[i]))
	}

	instr := &ir.Instruction{Op: ir.OpCall, Typ: ctx.irType(ret), Args: args, ArgTypes: argTypes}
	if ret != types.Void {
		instr.Result = ctx.newTemp()
	}
	ctx.addInstr(instr)
	return instr.Result, nil
}

func getBinaryOp(op token.Type) (ir.Op, bool) {
	switch op {
	case token.Plus: return ir.OpAdd, true
	case token.Minus: return ir.OpSub, true
	case token.Star: return ir.OpMul, true
	case token.Slash: return ir.OpDiv, true
	case token.EqEq: return ir.OpCEq, true
	case token.Neq: return ir.OpCNeq, true
	case token.Lt: return ir.OpCLt, true
	case token.Gt: return ir.OpCGt, true
	case token.Lte: return ir.OpCLe, true
	case token.Gte: return ir.OpCGe, true
	}
	return -1, false
}

func isComparison(op ir.Op) bool { return op >= ir.OpCEq && op <= ir.OpCGe }
