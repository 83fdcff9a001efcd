// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/util"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	String
	Bool
	Ident
	UnaryOp
	BinaryOp
	FuncCall

	// Statements
	ExprStmt
	VarDecl
	Assign
	Print
	Return
	If
	While
	Block
	FuncDecl
)

var nodeTypeNames = [...]string{
	Number: "Number", String: "String", Bool: "Bool", Ident: "Ident",
	UnaryOp: "UnaryOp", BinaryOp: "BinaryOp", FuncCall: "FuncCall",
	ExprStmt: "ExprStmt", VarDecl: "VarDecl", Assign: "Assign", Print: "Print",
	Return: "Return", If: "If", While: "While", Block: "Block", FuncDecl: "FuncDecl",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "Node?"
}

// IsExpr reports whether nodes of this type produce a value.
func (t NodeType) IsExpr() bool { return t <= FuncCall }

// NodeID is a dense handle assigned by the Arena; side tables key on it.
type NodeID int

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	ID   NodeID
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type StringNode struct{ Value string }
type BoolNode struct{ Value bool }
type IdentNode struct{ Name string }
type UnaryOpNode struct{ Op token.Type; Expr *Node }
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type FuncCallNode struct{ Name string; Args []*Node }
type ExprStmtNode struct{ Expr *Node }

// VarDeclNode leaves TypeName empty and Init nil when they are omitted.
type VarDeclNode struct {
	Name     string
	TypeName string
	TypeTok  token.Token
	Init     *Node
}
type AssignNode struct{ Name string; Value *Node }
type PrintNode struct{ Value *Node }
type ReturnNode struct{ Expr *Node }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type BlockNode struct{ Stmts []*Node; IsSynthetic bool }

type Param struct {
	Name     string
	TypeName string
	Tok      token.Token
}

// FuncDeclNode leaves ReturnType empty when no ': type' follows the parameters.
type FuncDeclNode struct {
	Name       string
	Params     []Param
	ReturnType string
	ReturnTok  token.Token
	Body       *Node
}

// Program is the parser's result. Functions are FuncDecl nodes in source order.
type Program struct {
	Functions []*Node
	Arena     *Arena
}

// Arena hands out node IDs. IDs are never reused within one Arena.
type Arena struct {
	nodes []*Node
}

func NewArena() *Arena { return &Arena{} }

func (a *Arena) newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	node := &Node{ID: NodeID(len(a.nodes)), Type: nodeType, Tok: tok, Data: data}
	a.nodes = append(a.nodes, node)
	return node
}

// Node returns the node with the given ID, or nil.
func (a *Arena) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

func (a *Arena) Len() int { return len(a.nodes) }

// --- Node Constructors ---

func (a *Arena) NewNumber(tok token.Token, value int64) *Node {
	return a.newNode(tok, Number, NumberNode{Value: value})
}
func (a *Arena) NewString(tok token.Token, value string) *Node {
	return a.newNode(tok, String, StringNode{Value: value})
}
func (a *Arena) NewBool(tok token.Token, value bool) *Node {
	return a.newNode(tok, Bool, BoolNode{Value: value})
}
func (a *Arena) NewIdent(tok token.Token, name string) *Node {
	return a.newNode(tok, Ident, IdentNode{Name: name})
}
func (a *Arena) NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return a.newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func (a *Arena) NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return a.newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func (a *Arena) NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return a.newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}
func (a *Arena) NewExprStmt(tok token.Token, expr *Node) *Node {
	return a.newNode(tok, ExprStmt, ExprStmtNode{Expr: expr})
}
func (a *Arena) NewVarDecl(tok token.Token, name, typeName string, typeTok token.Token, init *Node) *Node {
	return a.newNode(tok, VarDecl, VarDeclNode{Name: name, TypeName: typeName, TypeTok: typeTok, Init: init})
}
func (a *Arena) NewAssign(tok token.Token, name string, value *Node) *Node {
	return a.newNode(tok, Assign, AssignNode{Name: name, Value: value})
}
func (a *Arena) NewPrint(tok token.Token, value *Node) *Node {
	return a.newNode(tok, Print, PrintNode{Value: value})
}
func (a *Arena) NewReturn(tok token.Token, expr *Node) *Node {
	return a.newNode(tok, Return, ReturnNode{Expr: expr})
}
func (a *Arena) NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return a.newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody})
}
func (a *Arena) NewWhile(tok token.Token, cond, body *Node) *Node {
	return a.newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func (a *Arena) NewBlock(tok token.Token, stmts []*Node, isSynthetic bool) *Node {
	return a.newNode(tok, Block, BlockNode{Stmts: stmts, IsSynthetic: isSynthetic})
}
func (a *Arena) NewFuncDecl(tok token.Token, name string, params []Param, returnType string, returnTok token.Token, body *Node) *Node {
	return a.newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, ReturnType: returnType, ReturnTok: returnTok, Body: body})
}

// Walk calls fn for node and then for each of its children, depth first in
// source order. Returning false from fn skips the node's children.
func Walk(node *Node, fn func(*Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch d := node.Data.(type) {
	case UnaryOpNode:
		Walk(d.Expr, fn)
	case BinaryOpNode:
		Walk(d.Left, fn)
		Walk(d.Right, fn)
	case FuncCallNode:
		for _, arg := range d.Args {
			Walk(arg, fn)
		}
	case ExprStmtNode:
		Walk(d.Expr, fn)
	case VarDeclNode:
		Walk(d.Init, fn)
	case AssignNode:
		Walk(d.Value, fn)
	case PrintNode:
		Walk(d.Value, fn)
	case ReturnNode:
		Walk(d.Expr, fn)
	case IfNode:
		Walk(d.Cond, fn)
		Walk(d.ThenBody, fn)
		Walk(d.ElseBody, fn)
	case WhileNode:
		Walk(d.Cond, fn)
		Walk(d.Body, fn)
	case BlockNode:
		for _, stmt := range d.Stmts {
			Walk(stmt, fn)
		}
	case FuncDeclNode:
		Walk(d.Body, fn)
	}
}

// Folder rewrites literal-only subexpressions into literals. OnFold, when
// set, is told about every replacement so annotations can follow the new node.
type Folder struct {
	Arena  *Arena
	OnFold func(old, folded *Node)
}

// FoldProgram folds every function body in place.
func (f *Folder) FoldProgram(prog *Program) error {
	for _, fn := range prog.Functions {
		if _, err := f.FoldConstants(fn); err != nil {
			return err
		}
	}
	return nil
}

// FoldConstants performs compile-time constant evaluation with 16-bit
// wraparound and returns the possibly replaced node.
func (f *Folder) FoldConstants(node *Node) (*Node, error) {
	if node == nil {
		return nil, nil
	}

	var err error
	fold := func(n *Node) *Node {
		if err != nil {
			return n
		}
		var res *Node
		res, err = f.FoldConstants(n)
		return res
	}

	// Recursively fold children first
	switch d := node.Data.(type) {
	case UnaryOpNode:
		d.Expr = fold(d.Expr)
		node.Data = d
	case BinaryOpNode:
		d.Left = fold(d.Left)
		d.Right = fold(d.Right)
		node.Data = d
	case FuncCallNode:
		for i := range d.Args {
			d.Args[i] = fold(d.Args[i])
		}
	case ExprStmtNode:
		d.Expr = fold(d.Expr)
		node.Data = d
	case VarDeclNode:
		d.Init = fold(d.Init)
		node.Data = d
	case AssignNode:
		d.Value = fold(d.Value)
		node.Data = d
	case PrintNode:
		d.Value = fold(d.Value)
		node.Data = d
	case ReturnNode:
		d.Expr = fold(d.Expr)
		node.Data = d
	case IfNode:
		d.Cond = fold(d.Cond)
		fold(d.ThenBody)
		fold(d.ElseBody)
		node.Data = d
	case WhileNode:
		d.Cond = fold(d.Cond)
		fold(d.Body)
		node.Data = d
	case BlockNode:
		for i := range d.Stmts {
			d.Stmts[i] = fold(d.Stmts[i])
		}
	case FuncDeclNode:
		fold(d.Body)
	}
	if err != nil {
		return node, err
	}

	// Then, attempt to fold the current node.
	var folded *Node
	switch node.Type {
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		if d.Left.Type == Number && d.Right.Type == Number {
			l, r := d.Left.Data.(NumberNode).Value, d.Right.Data.(NumberNode).Value
			switch d.Op {
			case token.Plus: folded = f.Arena.NewNumber(node.Tok, wrap16(l+r))
			case token.Minus: folded = f.Arena.NewNumber(node.Tok, wrap16(l-r))
			case token.Star: folded = f.Arena.NewNumber(node.Tok, wrap16(l*r))
			case token.Slash:
				if r == 0 {
					return node, util.Errorf(util.SemanticError, node.Tok, "compile-time division by zero")
				}
				folded = f.Arena.NewNumber(node.Tok, wrap16(wrap16(l)/wrap16(r)))
			case token.EqEq: folded = f.Arena.NewBool(node.Tok, wrap16(l) == wrap16(r))
			case token.Neq: folded = f.Arena.NewBool(node.Tok, wrap16(l) != wrap16(r))
			case token.Lt: folded = f.Arena.NewBool(node.Tok, wrap16(l) < wrap16(r))
			case token.Gt: folded = f.Arena.NewBool(node.Tok, wrap16(l) > wrap16(r))
			case token.Lte: folded = f.Arena.NewBool(node.Tok, wrap16(l) <= wrap16(r))
			case token.Gte: folded = f.Arena.NewBool(node.Tok, wrap16(l) >= wrap16(r))
			}
		}
		if d.Left.Type == Bool && d.Right.Type == Bool {
			l, r := d.Left.Data.(BoolNode).Value, d.Right.Data.(BoolNode).Value
			switch d.Op {
			case token.EqEq: folded = f.Arena.NewBool(node.Tok, l == r)
			case token.Neq: folded = f.Arena.NewBool(node.Tok, l != r)
			}
		}
	case UnaryOp:
		d := node.Data.(UnaryOpNode)
		switch {
		case d.Op == token.Minus && d.Expr.Type == Number:
			folded = f.Arena.NewNumber(node.Tok, wrap16(-d.Expr.Data.(NumberNode).Value))
		case d.Op == token.Not && d.Expr.Type == Bool:
			folded = f.Arena.NewBool(node.Tok, !d.Expr.Data.(BoolNode).Value)
		}
	}

	if folded == nil {
		return node, nil
	}
	if f.OnFold != nil {
		f.OnFold(node, folded)
	}
	return folded, nil
}

func wrap16(v int64) int64 { return int64(int16(v)) }
