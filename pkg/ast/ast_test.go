package ast

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/quinlang/qlc/pkg/token"
)

var tok = token.Token{Line: 1, Column: 1}

func num(a *Arena, v int64) *Node { return a.NewNumber(tok, v) }

func TestArenaAssignsSequentialIDs(t *testing.T) {
	a := NewArena()
	x := num(a, 1)
	y := num(a, 2)
	sum := a.NewBinaryOp(tok, token.Plus, x, y)

	be.Equal(t, x.ID, NodeID(0))
	be.Equal(t, y.ID, NodeID(1))
	be.Equal(t, sum.ID, NodeID(2))
	be.Equal(t, a.Len(), 3)
	be.Equal(t, a.Node(2), sum)
	be.True(t, a.Node(3) == nil)
	be.True(t, a.Node(-1) == nil)
}

func TestNodeTypeNames(t *testing.T) {
	be.Equal(t, BinaryOp.String(), "BinaryOp")
	be.Equal(t, FuncDecl.String(), "FuncDecl")
	be.True(t, FuncCall.IsExpr())
	be.True(t, !ExprStmt.IsExpr())
}

func TestWalkSkipsChildren(t *testing.T) {
	a := NewArena()
	inner := a.NewBinaryOp(tok, token.Star, num(a, 2), num(a, 3))
	root := a.NewBinaryOp(tok, token.Plus, num(a, 1), inner)

	var visited []NodeType
	Walk(root, func(n *Node) bool {
		visited = append(visited, n.Type)
		return n != inner
	})
	be.Equal(t, visited, []NodeType{BinaryOp, Number, BinaryOp})
}

func TestFoldArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   token.Type
		l, r int64
		want int64
	}{
		{"add", token.Plus, 1, 2, 3},
		{"sub", token.Minus, 5, 10, -5},
		{"mul wraps", token.Star, 300, 300, 24464},
		{"add wraps", token.Plus, 32767, 1, -32768},
		{"div truncates", token.Slash, -7, 2, -3},
		{"unsigned literal", token.Plus, 65535, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArena()
			expr := a.NewBinaryOp(tok, tt.op, num(a, tt.l), num(a, tt.r))
			folded, err := (&Folder{Arena: a}).FoldConstants(expr)
			be.Err(t, err, nil)
			be.Equal(t, folded.Type, Number)
			be.Equal(t, folded.Data.(NumberNode).Value, tt.want)
		})
	}
}

func TestFoldComparisonsAndUnary(t *testing.T) {
	a := NewArena()
	f := &Folder{Arena: a}

	lt, err := f.FoldConstants(a.NewBinaryOp(tok, token.Lt, num(a, 1), num(a, 2)))
	be.Err(t, err, nil)
	be.Equal(t, lt.Data, any(BoolNode{Value: true}))

	neg, err := f.FoldConstants(a.NewUnaryOp(tok, token.Minus, num(a, 4)))
	be.Err(t, err, nil)
	be.Equal(t, neg.Data, any(NumberNode{Value: -4}))

	not, err := f.FoldConstants(a.NewUnaryOp(tok, token.Not, a.NewBool(tok, true)))
	be.Err(t, err, nil)
	be.Equal(t, not.Data, any(BoolNode{Value: false}))
}

func TestFoldLeavesVariablesAlone(t *testing.T) {
	a := NewArena()
	x := a.NewIdent(tok, "x")
	expr := a.NewBinaryOp(tok, token.Plus, x, a.NewBinaryOp(tok, token.Star, num(a, 2), num(a, 3)))

	var folds int
	f := &Folder{Arena: a, OnFold: func(old, folded *Node) { folds++ }}
	res, err := f.FoldConstants(expr)
	be.Err(t, err, nil)
	be.Equal(t, res, expr)
	be.Equal(t, folds, 1)

	d := res.Data.(BinaryOpNode)
	be.Equal(t, d.Left, x)
	be.Equal(t, d.Right.Data, any(NumberNode{Value: 6}))
}

func TestFoldProgramRewritesStatements(t *testing.T) {
	a := NewArena()
	ret := a.NewReturn(tok, a.NewBinaryOp(tok, token.Plus, num(a, 1), num(a, 2)))
	body := a.NewBlock(tok, []*Node{ret}, false)
	fn := a.NewFuncDecl(tok, "main", nil, "int", tok, body)
	prog := &Program{Functions: []*Node{fn}, Arena: a}

	be.Err(t, (&Folder{Arena: a}).FoldProgram(prog), nil)
	be.Equal(t, ret.Data.(ReturnNode).Expr.Data, any(NumberNode{Value: 3}))
}

func TestFoldDivisionByZero(t *testing.T) {
	a := NewArena()
	expr := a.NewBinaryOp(token.Token{Line: 3, Column: 7}, token.Slash, num(a, 1), num(a, 0))
	_, err := (&Folder{Arena: a}).FoldConstants(expr)
	be.Err(t, err, "compile-time division by zero")
}
