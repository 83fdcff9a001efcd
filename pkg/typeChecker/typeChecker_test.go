package typeChecker

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/lexer"
	"github.com/quinlang/qlc/pkg/parser"
	"github.com/quinlang/qlc/pkg/types"
	"github.com/quinlang/qlc/pkg/util"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.NewLexer([]rune(src), nil).Tokenize()
	be.Err(t, err, nil)
	prog, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)
	return prog
}

func check(t *testing.T, cfg *config.Config, src string) (*Context, *TypeChecker, error) {
	t.Helper()
	tc := NewTypeChecker(cfg)
	info, err := tc.Check(parse(t, src))
	return info, tc, err
}

func checkOK(t *testing.T, src string) *Context {
	t.Helper()
	info, _, err := check(t, nil, src)
	be.Err(t, err, nil)
	return info
}

func semanticErr(t *testing.T, cfg *config.Config, src string) *util.Diagnostic {
	t.Helper()
	_, _, err := check(t, cfg, src)
	d, ok := util.AsDiagnostic(err)
	be.True(t, ok)
	be.Equal(t, d.Kind, util.SemanticError)
	return d
}

func TestSignatures(t *testing.T) {
	info := checkOK(t, `
fn add(a: int, b: int): int { return a + b; }
fn greet(name: str) { print(name); }
fn main(): int { greet("x"); return add(1, 2); }`)

	be.Equal(t, info.Functions["main"].Ret, types.Int)
	be.Equal(t, info.Functions["add"].Params, []types.Type{types.Int, types.Int})
	be.Equal(t, info.Functions["greet"].Ret, types.Void)
	be.Equal(t, len(info.Functions), 3)
}

func TestCallBeforeDefinition(t *testing.T) {
	checkOK(t, `
fn main(): int { return later(2); }
fn later(n: int): int { return n * 2; }`)
}

func TestExpressionAnnotations(t *testing.T) {
	prog := parse(t, `fn main(): int { let s: str = "a"; let b = s == "b"; return 1 + 2; }`)
	info, err := NewTypeChecker(nil).Check(prog)
	be.Err(t, err, nil)

	stmts := prog.Functions[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
	sType, ok := info.TypeOf(stmts[0].Data.(ast.VarDeclNode).Init)
	be.True(t, ok)
	be.Equal(t, sType, types.Str)

	bDecl := stmts[1]
	cmpType, _ := info.TypeOf(bDecl.Data.(ast.VarDeclNode).Init)
	be.Equal(t, cmpType, types.Bool)
	bSym, ok := info.SymbolOf(bDecl)
	be.True(t, ok)
	be.Equal(t, bSym.Type, types.Bool)
	be.Equal(t, bSym.Param, -1)
	be.Equal(t, bSym.Tok.Value, "b")
	be.Equal(t, bSym.Tok.Column, 40)

	sum := stmts[2].Data.(ast.ReturnNode).Expr
	sumType, _ := info.TypeOf(sum)
	be.Equal(t, sumType, types.Int)
	// every expression node is annotated
	ast.Walk(prog.Functions[0], func(n *ast.Node) bool {
		if n.Type.IsExpr() {
			_, ok := info.TypeOf(n)
			be.True(t, ok)
		}
		return true
	})
}

func TestLocalsAndShadowing(t *testing.T) {
	prog := parse(t, `
fn f(a: int, b: str): int {
    let x: int = a;
    {
        let x: int = 2;
        x = x + 1;
    }
    return x;
}
fn main(): int { return f(1, "s"); }`)
	info, err := NewTypeChecker(nil).Check(prog)
	be.Err(t, err, nil)

	locals := info.Locals("f")
	be.Equal(t, len(locals), 4)
	be.Equal(t, locals[0].Name, "a")
	be.Equal(t, locals[0].Param, 0)
	be.Equal(t, locals[1].Param, 1)
	be.Equal(t, locals[2].Param, -1)
	be.Equal(t, locals[3].Param, -1)
	be.True(t, locals[2] != locals[3])

	stmts := prog.Functions[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
	inner := stmts[1].Data.(ast.BlockNode).Stmts
	assignSym, _ := info.SymbolOf(inner[1])
	be.Equal(t, assignSym, locals[3])

	retSym, _ := info.SymbolOf(stmts[2].Data.(ast.ReturnNode).Expr)
	be.Equal(t, retSym, locals[2])
}

func TestDuplicateFunction(t *testing.T) {
	d := semanticErr(t, nil, "fn f(): int { return 1; }\nfn f(): int { return 2; }\nfn main(): int { return f(); }")
	be.Equal(t, d.Msg, "redefinition of function 'f' (first defined at line 1)")
	be.Equal(t, d.Tok.Line, 2)
}

func TestMissingMain(t *testing.T) {
	d := semanticErr(t, nil, "fn helper(): int { return 0; }")
	be.Equal(t, d.Msg, "missing entry point: no function named 'main'")

	d = semanticErr(t, nil, "")
	be.Equal(t, d.Msg, "missing entry point: no function named 'main'")
}

func TestEmptyVoidFunctionIsValid(t *testing.T) {
	info := checkOK(t, "fn main(): void { }")
	be.Equal(t, len(info.Locals("main")), 0)
	checkOK(t, "fn main() { return; }")
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"undeclared variable", "fn main(): int { return y; }", "undeclared variable 'y'"},
		{"assign undeclared", "fn main() { y = 1; }", "assignment to undeclared variable 'y'"},
		{"redeclaration", "fn main() { let x: int = 1; let x: int = 2; }", "redeclaration of variable 'x' in the same scope"},
		{"param redeclared", "fn f(a: int, a: int) { } fn main() { }", "redeclaration of variable 'a' in the same scope"},
		{"undeclared function", "fn main() { g(); }", "call to undeclared function 'g'"},
		{"arity", "fn f(a: int): int { return a; } fn main(): int { return f(); }", "function 'f' expects 1 arguments, got 0"},
		{"argument type", `fn f(a: int): int { return a; } fn main(): int { return f("s"); }`, "argument 1 of 'f': expected int, found str"},
		{"init mismatch", `fn main() { let x: int = "s"; }`, "type mismatch in initializer for 'x': declared int, found str"},
		{"assign mismatch", `fn main() { let x: int = 1; x = "s"; }`, "cannot assign str to variable 'x' of type int"},
		{"no type", "fn main() { let x; }", "cannot infer type for 'x' without a type or initializer"},
		{"void variable", "fn main() { let x: void; }", "variable 'x' cannot have type void"},
		{"void from call", "fn v() { } fn main() { let x = v(); }", "variable 'x' cannot have type void"},
		{"void param", "fn f(a: void) { } fn main() { }", "parameter 'a' cannot have type void"},
		{"arith on str", `fn main(): int { return "a" + 1; }`, "operator '+' requires int operands, found str and int"},
		{"mixed compare", `fn main() { let b = 1 == "a"; }`, "comparison '==' requires operands of the same type, found int and str"},
		{"void compare", "fn v() { } fn main() { let b = v() == v(); }", "cannot compare void values"},
		{"negate bool", "fn main() { let b = -true; }", "invalid operand of type bool for unary '-'"},
		{"not int", "fn main() { let b = !1; }", "invalid operand of type int for unary '!'"},
		{"int condition", "fn main() { if (1) { } }", "condition must be bool, found int"},
		{"str while", `fn main() { while ("s") { } }`, "condition must be bool, found str"},
		{"print bool", "fn main() { print(true); }", "print expects int or str, found bool"},
		{"print void", "fn v() { } fn main() { print(v()); }", "print expects int or str, found void"},
		{"value from void", "fn main() { return 1; }", "void function 'main' cannot return a value"},
		{"bare return", "fn main(): int { return; }", "function 'main' must return a value of type int"},
		{"wrong return", `fn main(): int { return "s"; }`, "function 'main' returns int, found str"},
		{"missing return", "fn main(): int { let x: int = 1; }", "function 'main' is missing a return statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := semanticErr(t, nil, tt.src)
			be.Equal(t, d.Msg, tt.msg)
		})
	}
}

func TestPathReturn(t *testing.T) {
	partial := `
fn sign(n: int): int {
    if (n < 0) { return -1; } else if (n > 0) { return 1; }
}
fn main(): int { return sign(1); }`
	d := semanticErr(t, nil, partial)
	be.Equal(t, d.Msg, "function 'sign' is missing a return statement")

	full := `
fn sign(n: int): int {
    if (n < 0) { return -1; } else if (n > 0) { return 1; } else { return 0; }
}
fn main(): int { return sign(1); }`
	checkOK(t, full)

	loopOnly := `
fn main(): int {
    while (true) { return 1; }
}`
	d = semanticErr(t, nil, loopOnly)
	be.Equal(t, d.Msg, "function 'main' is missing a return statement")
}

func TestLegacyStdRelaxesChecks(t *testing.T) {
	cfg := config.NewConfig()
	be.Err(t, cfg.ApplyStd("legacy"), nil)

	_, _, err := check(t, cfg, "fn main(): int { let x: int = 1; while (x) { x = 0; } if (x) { return 1; } return 0; }")
	be.Err(t, err, nil)

	// only a top-level return counts under the shallow rule
	_, _, err = check(t, cfg, "fn main(): int { if (true) { return 1; } else { return 2; } }")
	be.Err(t, err, "missing a return statement")
}

func TestWarnings(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnShadow, true)

	_, tc, err := check(t, cfg, `
fn main(x: num): int {
    let y: int = 1;
    {
        let y: int = 2;
    }
    return y;
    print(1);
    print(2);
}`)
	be.Err(t, err, nil)

	var flags []string
	for _, w := range tc.Warnings() {
		be.Equal(t, w.Kind, util.Warning)
		flags = append(flags, w.Flag)
	}
	be.Equal(t, flags, []string{"unknown-type", "shadow", "unreachable-code"})

	unreachable := tc.Warnings()[2]
	be.Equal(t, unreachable.Tok.Line, 8)
}

func TestUnknownTypeResolvesToInt(t *testing.T) {
	info, tc, err := check(t, nil, "fn main(): number { let n: number = 3; return n + 1; }")
	be.Err(t, err, nil)
	be.Equal(t, info.Functions["main"].Ret, types.Int)
	be.Equal(t, len(tc.Warnings()), 2)

	cfg := config.NewConfig()
	be.Err(t, cfg.ApplyStd("legacy"), nil)
	_, tc, err = check(t, cfg, "fn main(): number { return 0; }")
	be.Err(t, err, nil)
	be.Equal(t, len(tc.Warnings()), 0)
}

func TestCheckerIsReusable(t *testing.T) {
	tc := NewTypeChecker(nil)
	_, err := tc.Check(parse(t, "fn main(): int { let a: int = 1; return a; }"))
	be.Err(t, err, nil)
	info, err := tc.Check(parse(t, "fn main() { }"))
	be.Err(t, err, nil)
	be.Equal(t, len(info.Functions), 1)
	be.Equal(t, len(info.Locals("main")), 0)
}
