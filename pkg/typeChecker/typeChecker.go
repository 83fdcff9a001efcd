package typeChecker

import (
	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/types"
	"github.com/quinlang/qlc/pkg/util"
)

// Symbol is one binding. Param is the parameter index, or -1 for a 'let'.
type Symbol struct {
	Name  string
	Type  types.Type
	ID    int
	Param int
	Tok   token.Token
	Next  *Symbol
}

type Scope struct {
	Symbols *Symbol
	Parent  *Scope
}

type FunctionSig struct {
	Name   string
	Params []types.Type
	Ret    types.Type
	Node   *ast.Node
}

// Context is the analyzer's result: function signatures plus per-node
// annotations. Code generation reads it and derives no types of its own.
type Context struct {
	Functions map[string]*FunctionSig
	types     map[ast.NodeID]types.Type
	symbols   map[ast.NodeID]*Symbol
	locals    map[string][]*Symbol
}

func newContext() *Context {
	return &Context{
		Functions: make(map[string]*FunctionSig),
		types:     make(map[ast.NodeID]types.Type),
		symbols:   make(map[ast.NodeID]*Symbol),
		locals:    make(map[string][]*Symbol),
	}
}

func (c *Context) TypeOf(node *ast.Node) (types.Type, bool) {
	t, ok := c.types[node.ID]
	return t, ok
}

// SymbolOf returns the binding an Ident, Assign or VarDecl node refers to.
func (c *Context) SymbolOf(node *ast.Node) (*Symbol, bool) {
	sym, ok := c.symbols[node.ID]
	return sym, ok
}

// Locals lists a function's parameters in order, then its lets in
// declaration order.
func (c *Context) Locals(fn string) []*Symbol { return c.locals[fn] }

// CopyAnnotation makes to carry the annotations of from. Used when a later
// pass replaces a checked node.
func (c *Context) CopyAnnotation(from, to *ast.Node) {
	if t, ok := c.types[from.ID]; ok {
		c.types[to.ID] = t
	}
	if sym, ok := c.symbols[from.ID]; ok {
		c.symbols[to.ID] = sym
	}
}

type TypeChecker struct {
	currentScope *Scope
	currentFunc  *FunctionSig
	cfg          *config.Config
	ctx          *Context
	locals       []*Symbol
	nextID       int
	warnings     util.Warnings
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &TypeChecker{cfg: cfg}
}

func (tc *TypeChecker) Warnings() []*util.Diagnostic { return tc.warnings.List() }

func newScope(parent *Scope) *Scope { return &Scope{Parent: parent} }
func (tc *TypeChecker) enterScope() { tc.currentScope = newScope(tc.currentScope) }
func (tc *TypeChecker) exitScope() {
	if tc.currentScope.Parent != nil {
		tc.currentScope = tc.currentScope.Parent
	}
}

func semErr(tok token.Token, format string, args ...any) error {
	return util.Errorf(util.SemanticError, tok, format, args...)
}

func (tc *TypeChecker) findSymbol(name string, currentOnly bool) *Symbol {
	for s := tc.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym
			}
		}
		if currentOnly {
			break
		}
	}
	return nil
}

func (tc *TypeChecker) addSymbol(name string, typ types.Type, param int, tok token.Token) (*Symbol, error) {
	if tc.findSymbol(name, true) != nil {
		return nil, semErr(tok, "redeclaration of variable '%s' in the same scope", name)
	}
	if outer := tc.findSymbol(name, false); outer != nil {
		tc.warnings.Add(util.Warn(tc.cfg, config.WarnShadow, tok, "declaration of '%s' shadows an outer binding from line %d", name, outer.Tok.Line))
	}
	sym := &Symbol{Name: name, Type: typ, ID: tc.nextID, Param: param, Tok: tok, Next: tc.currentScope.Symbols}
	tc.nextID++
	tc.currentScope.Symbols = sym
	tc.locals = append(tc.locals, sym)
	return sym, nil
}

func (tc *TypeChecker) resolveType(name string, tok token.Token) types.Type {
	t, known := types.FromName(name)
	if !known {
		tc.warnings.Add(util.Warn(tc.cfg, config.WarnUnknownType, tok, "unknown type '%s', treating it as 'int'", name))
	}
	return t
}

// Check runs signature collection over every function, then checks each body.
func (tc *TypeChecker) Check(prog *ast.Program) (*Context, error) {
	tc.ctx = newContext()
	tc.nextID = 0

	if err := tc.collectSignatures(prog); err != nil {
		return nil, err
	}
	for _, fn := range prog.Functions {
		if err := tc.checkFuncDecl(fn); err != nil {
			return nil, err
		}
	}
	return tc.ctx, nil
}

func (tc *TypeChecker) collectSignatures(prog *ast.Program) error {
	for _, fn := range prog.Functions {
		d := fn.Data.(ast.FuncDeclNode)
		if prev, exists := tc.ctx.Functions[d.Name]; exists {
			return semErr(fn.Tok, "redefinition of function '%s' (first defined at line %d)", d.Name, prev.Node.Tok.Line)
		}
		sig := &FunctionSig{Name: d.Name, Ret: types.Void, Node: fn}
		for _, p := range d.Params {
			sig.Params = append(sig.Params, tc.resolveType(p.TypeName, p.Tok))
		}
		if d.ReturnType != "" {
			sig.Ret = tc.resolveType(d.ReturnType, d.ReturnTok)
		}
		tc.ctx.Functions[d.Name] = sig
	}
	if _, ok := tc.ctx.Functions["main"]; !ok {
		tok := token.Token{Type: token.EOF}
		if len(prog.Functions) > 0 {
			tok = prog.Functions[0].Tok
		}
		return semErr(tok, "missing entry point: no function named 'main'")
	}
	return nil
}

func (tc *TypeChecker) checkFuncDecl(fn *ast.Node) error {
	d := fn.Data.(ast.FuncDeclNode)
	sig := tc.ctx.Functions[d.Name]
	tc.currentFunc = sig
	tc.currentScope = newScope(nil)
	tc.locals = nil
	defer func() { tc.currentFunc, tc.currentScope = nil, nil }()

	for i, p := range d.Params {
		if sig.Params[i] == types.Void {
			return semErr(p.Tok, "parameter '%s' cannot have type void", p.Name)
		}
		if _, err := tc.addSymbol(p.Name, sig.Params[i], i, p.Tok); err != nil {
			return err
		}
	}

	body := d.Body.Data.(ast.BlockNode)
	if err := tc.checkStmts(body.Stmts); err != nil {
		return err
	}
	tc.ctx.locals[d.Name] = tc.locals

	if sig.Ret != types.Void && !tc.bodyReturns(body.Stmts) {
		return semErr(fn.Tok, "function '%s' is missing a return statement", d.Name)
	}
	return nil
}

func (tc *TypeChecker) bodyReturns(stmts []*ast.Node) bool {
	if tc.cfg.IsFeatureEnabled(config.FeatPathReturn) {
		return stmtsTerminate(stmts)
	}
	for _, stmt := range stmts {
		if stmt.Type == ast.Return {
			return true
		}
	}
	return false
}

// stmtsTerminate reports whether every path through stmts reaches a return.
func stmtsTerminate(stmts []*ast.Node) bool {
	for _, stmt := range stmts {
		if terminates(stmt) {
			return true
		}
	}
	return false
}

func terminates(stmt *ast.Node) bool {
	switch d := stmt.Data.(type) {
	case ast.ReturnNode:
		return true
	case ast.BlockNode:
		return stmtsTerminate(d.Stmts)
	case ast.IfNode:
		return d.ElseBody != nil && terminates(d.ThenBody) && terminates(d.ElseBody)
	}
	return false
}

func (tc *TypeChecker) checkStmts(stmts []*ast.Node) error {
	warned := false
	for i, stmt := range stmts {
		if err := tc.checkStmt(stmt); err != nil {
			return err
		}
		if !warned && i+1 < len(stmts) && terminates(stmt) {
			tc.warnings.Add(util.Warn(tc.cfg, config.WarnUnreachableCode, stmts[i+1].Tok, "unreachable code"))
			warned = true
		}
	}
	return nil
}

func (tc *TypeChecker) checkBlock(block *ast.Node) error {
	tc.enterScope()
	defer tc.exitScope()
	return tc.checkStmts(block.Data.(ast.BlockNode).Stmts)
}

func (tc *TypeChecker) checkStmt(stmt *ast.Node) error {
	switch d := stmt.Data.(type) {
	case ast.VarDeclNode:
		return tc.checkVarDecl(stmt, d)
	case ast.AssignNode:
		sym := tc.findSymbol(d.Name, false)
		if sym == nil {
			return semErr(stmt.Tok, "assignment to undeclared variable '%s'", d.Name)
		}
		valType, err := tc.checkExpr(d.Value)
		if err != nil {
			return err
		}
		if valType != sym.Type {
			return semErr(d.Value.Tok, "cannot assign %s to variable '%s' of type %s", valType, d.Name, sym.Type)
		}
		tc.ctx.symbols[stmt.ID] = sym
	case ast.PrintNode:
		valType, err := tc.checkExpr(d.Value)
		if err != nil {
			return err
		}
		if valType != types.Int && valType != types.Str {
			return semErr(d.Value.Tok, "print expects int or str, found %s", valType)
		}
	case ast.ReturnNode:
		return tc.checkReturn(stmt, d)
	case ast.IfNode:
		if err := tc.checkCond(d.Cond); err != nil {
			return err
		}
		if err := tc.checkBlock(d.ThenBody); err != nil {
			return err
		}
		if d.ElseBody != nil {
			return tc.checkBlock(d.ElseBody)
		}
	case ast.WhileNode:
		if err := tc.checkCond(d.Cond); err != nil {
			return err
		}
		return tc.checkBlock(d.Body)
	case ast.BlockNode:
		return tc.checkBlock(stmt)
	case ast.ExprStmtNode:
		_, err := tc.checkExpr(d.Expr)
		return err
	default:
		return semErr(stmt.Tok, "unexpected %s node in statement position", stmt.Type)
	}
	return nil
}

func (tc *TypeChecker) checkVarDecl(stmt *ast.Node, d ast.VarDeclNode) error {
	var varType types.Type
	declared := d.TypeName != ""
	if declared {
		varType = tc.resolveType(d.TypeName, d.TypeTok)
	}
	if d.Init != nil {
		initType, err := tc.checkExpr(d.Init)
		if err != nil {
			return err
		}
		if !declared {
			varType = initType
		} else if varType != initType {
			return semErr(d.Init.Tok, "type mismatch in initializer for '%s': declared %s, found %s", d.Name, varType, initType)
		}
	} else if !declared {
		return semErr(stmt.Tok, "cannot infer type for '%s' without a type or initializer", d.Name)
	}
	if varType == types.Void {
		return semErr(stmt.Tok, "variable '%s' cannot have type void", d.Name)
	}

	sym, err := tc.addSymbol(d.Name, varType, -1, stmt.Tok)
	if err != nil {
		return err
	}
	tc.ctx.symbols[stmt.ID] = sym
	return nil
}

func (tc *TypeChecker) checkReturn(stmt *ast.Node, d ast.ReturnNode) error {
	fn := tc.currentFunc
	if d.Expr == nil {
		if fn.Ret != types.Void {
			return semErr(stmt.Tok, "function '%s' must return a value of type %s", fn.Name, fn.Ret)
		}
		return nil
	}
	valType, err := tc.checkExpr(d.Expr)
	if err != nil {
		return err
	}
	if fn.Ret == types.Void {
		return semErr(d.Expr.Tok, "void function '%s' cannot return a value", fn.Name)
	}
	if valType != fn.Ret {
		return semErr(d.Expr.Tok, "function '%s' returns %s, found %s", fn.Name, fn.Ret, valType)
	}
	return nil
}

func (tc *TypeChecker) checkCond(cond *ast.Node) error {
	condType, err := tc.checkExpr(cond)
	if err != nil {
		return err
	}
	if tc.cfg.IsFeatureEnabled(config.FeatBoolCond) && condType != types.Bool {
		return semErr(cond.Tok, "condition must be bool, found %s", condType)
	}
	return nil
}

func (tc *TypeChecker) annotate(node *ast.Node, t types.Type) (types.Type, error) {
	tc.ctx.types[node.ID] = t
	return t, nil
}

func (tc *TypeChecker) checkExpr(node *ast.Node) (types.Type, error) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return tc.annotate(node, types.Int)
	case ast.StringNode:
		return tc.annotate(node, types.Str)
	case ast.BoolNode:
		return tc.annotate(node, types.Bool)
	case ast.IdentNode:
		sym := tc.findSymbol(d.Name, false)
		if sym == nil {
			return types.Void, semErr(node.Tok, "undeclared variable '%s'", d.Name)
		}
		tc.ctx.symbols[node.ID] = sym
		return tc.annotate(node, sym.Type)
	case ast.UnaryOpNode:
		t, err := tc.checkExpr(d.Expr)
		if err != nil {
			return t, err
		}
		switch {
		case d.Op == token.Minus && t == types.Int:
			return tc.annotate(node, types.Int)
		case d.Op == token.Not && t == types.Bool:
			return tc.annotate(node, types.Bool)
		}
		return types.Void, semErr(node.Tok, "invalid operand of type %s for unary '%s'", t, d.Op)
	case ast.BinaryOpNode:
		return tc.checkBinaryExpr(node, d)
	case ast.FuncCallNode:
		return tc.checkFuncCall(node, d)
	}
	return types.Void, semErr(node.Tok, "unexpected %s node in expression position", node.Type)
}

func (tc *TypeChecker) checkBinaryExpr(node *ast.Node, d ast.BinaryOpNode) (types.Type, error) {
	lt, err := tc.checkExpr(d.Left)
	if err != nil {
		return lt, err
	}
	rt, err := tc.checkExpr(d.Right)
	if err != nil {
		return rt, err
	}

	switch d.Op {
	case token.Plus, token.Minus, token.Star, token.Slash:
		if lt == types.Int && rt == types.Int {
			return tc.annotate(node, types.Int)
		}
		return types.Void, semErr(node.Tok, "operator '%s' requires int operands, found %s and %s", d.Op, lt, rt)
	case token.EqEq, token.Neq, token.Lt, token.Lte, token.Gt, token.Gte:
		if lt != rt {
			return types.Void, semErr(node.Tok, "comparison '%s' requires operands of the same type, found %s and %s", d.Op, lt, rt)
		}
		if lt == types.Void {
			return types.Void, semErr(node.Tok, "cannot compare void values")
		}
		return tc.annotate(node, types.Bool)
	}
	return types.Void, util.Errorf(util.SemanticError, node.Tok, "internal error: unknown binary operator '%s'", d.Op)
}

func (tc *TypeChecker) checkFuncCall(node *ast.Node, d ast.FuncCallNode) (types.Type, error) {
	sig, ok := tc.ctx.Functions[d.Name]
	if !ok {
		return types.Void, semErr(node.Tok, "call to undeclared function '%s'", d.Name)
	}
	if len(d.Args) != len(sig.Params) {
		return types.Void, semErr(node.Tok, "function '%s' expects %d arguments, got %d", d.Name, len(sig.Params), len(d.Args))
	}
	for i, arg := range d.Args {
		at, err := tc.checkExpr(arg)
		if err != nil {
			return at, err
		}
		if at != sig.Params[i] {
			return types.Void, semErr(arg.Tok, "argument %d of '%s': expected %s, found %s", i+1, d.Name, sig.Params[i], at)
		}
	}
	return tc.annotate(node, sig.Ret)
}
