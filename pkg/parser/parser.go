package parser

import (
	"fmt"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	arena    *ast.Arena
}

// bailout carries the first parse error up to Parse.
type bailout struct{ err *util.Diagnostic }

// NewParser creates and initializes a new Parser from a token stream. The
// stream must end with an EOF token, as Lexer.Tokenize produces.
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	p := &Parser{tokens: tokens, arena: ast.NewArena()}
	p.current = p.tokens[0]
	return p
}

// Parse builds the whole program, or stops at the first syntax error.
func (p *Parser) Parse() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	prog = &ast.Program{Arena: p.arena}
	for !p.check(token.EOF) {
		prog.Functions = append(prog.Functions, p.parseFuncDecl())
	}
	return prog, nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokTypes ...token.Type) bool {
	for _, tokType := range tokTypes {
		if p.check(tokType) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		tok := p.current
		p.advance()
		return tok
	}
	p.fail(p.current, "%s", message)
	return token.Token{}
}

func (p *Parser) fail(tok token.Token, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if tok.Type == token.EOF {
		msg += ", found end of input"
	} else {
		msg += fmt.Sprintf(", found '%s'", tok.Value)
	}
	panic(bailout{util.Errorf(util.ParseError, tok, "%s", msg)})
}

// Declarations

func (p *Parser) parseFuncDecl() *ast.Node {
	fnTok := p.expect(token.Fn, "expected 'fn' at start of function")
	nameTok := p.expect(token.Ident, "expected function name after 'fn'")
	p.expect(token.LParen, "expected '(' after function name")

	var params []ast.Param
	if !p.check(token.RParen) {
		for {
			pTok := p.expect(token.Ident, "expected parameter name")
			p.expect(token.Colon, "expected ':' after parameter name")
			typeName, _ := p.parseTypeName()
			params = append(params, ast.Param{Name: pTok.Value, TypeName: typeName, Tok: pTok})
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after parameters")

	var returnType string
	var returnTok token.Token
	if p.match(token.Colon) {
		returnType, returnTok = p.parseTypeName()
	}

	body := p.parseBlock()
	return p.arena.NewFuncDecl(fnTok, nameTok.Value, params, returnType, returnTok, body)
}

// parseTypeName accepts the type keywords or any identifier; the analyzer
// decides what an identifier names.
func (p *Parser) parseTypeName() (string, token.Token) {
	tok := p.current
	if p.match(token.Int, token.Str, token.Void, token.Ident) {
		return tok.Value, tok
	}
	p.fail(tok, "expected type name")
	return "", tok
}

func (p *Parser) parseBlock() *ast.Node {
	tok := p.expect(token.LBrace, "expected '{' to start block")
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "expected '}' after block")
	return p.arena.NewBlock(tok, stmts, false)
}

// Statements

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Let):
		return p.parseVarDecl(tok)
	case p.match(token.Print):
		p.expect(token.LParen, "expected '(' after 'print'")
		value := p.parseExpr()
		p.expect(token.RParen, "expected ')' after print expression")
		p.expect(token.Semi, "expected ';' after print statement")
		return p.arena.NewPrint(tok, value)
	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "expected ';' after return value")
		return p.arena.NewReturn(tok, expr)
	case p.match(token.If):
		return p.parseIfStmt(tok)
	case p.match(token.While):
		p.expect(token.LParen, "expected '(' after 'while'")
		cond := p.parseExpr()
		p.expect(token.RParen, "expected ')' after condition")
		body := p.parseBlock()
		return p.arena.NewWhile(tok, cond, body)
	case p.check(token.LBrace):
		return p.parseBlock()
	case p.check(token.Ident) && p.peek().Type == token.Eq:
		p.advance()
		p.advance()
		value := p.parseExpr()
		p.expect(token.Semi, "expected ';' after assignment")
		return p.arena.NewAssign(tok, tok.Value, value)
	}

	expr := p.parseExpr()
	p.expect(token.Semi, "expected ';' after expression")
	return p.arena.NewExprStmt(tok, expr)
}

func (p *Parser) parseVarDecl(letTok token.Token) *ast.Node {
	nameTok := p.expect(token.Ident, "expected variable name after 'let'")
	var typeName string
	var typeTok token.Token
	if p.match(token.Colon) {
		typeName, typeTok = p.parseTypeName()
	}
	var init *ast.Node
	if p.match(token.Eq) {
		init = p.parseExpr()
	}
	p.expect(token.Semi, "expected ';' after variable declaration")
	return p.arena.NewVarDecl(nameTok, nameTok.Value, typeName, typeTok, init)
}

func (p *Parser) parseIfStmt(ifTok token.Token) *ast.Node {
	p.expect(token.LParen, "expected '(' after 'if'")
	cond := p.parseExpr()
	p.expect(token.RParen, "expected ')' after condition")
	thenBody := p.parseBlock()

	var elseBody *ast.Node
	if p.match(token.Else) {
		if elseTok := p.current; p.match(token.If) {
			nested := p.parseIfStmt(elseTok)
			elseBody = p.arena.NewBlock(elseTok, []*ast.Node{nested}, true)
		} else {
			elseBody = p.parseBlock()
		}
	}
	return p.arena.NewIf(ifTok, cond, thenBody, elseBody)
}

// Expression Parsing

func (p *Parser) parseExpr() *ast.Node { return p.parseEquality() }

func (p *Parser) parseBinary(next func() *ast.Node, ops ...token.Type) *ast.Node {
	left := next()
	for {
		tok := p.current
		if !p.match(ops...) {
			return left
		}
		right := next()
		left = p.arena.NewBinaryOp(tok, tok.Type, left, right)
	}
}

func (p *Parser) parseEquality() *ast.Node {
	return p.parseBinary(p.parseComparison, token.EqEq, token.Neq)
}

func (p *Parser) parseComparison() *ast.Node {
	return p.parseBinary(p.parseTerm, token.Gt, token.Gte, token.Lt, token.Lte)
}

func (p *Parser) parseTerm() *ast.Node {
	return p.parseBinary(p.parseFactor, token.Plus, token.Minus)
}

func (p *Parser) parseFactor() *ast.Node {
	return p.parseBinary(p.parseUnaryExpr, token.Star, token.Slash)
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Not, token.Minus) {
		return p.arena.NewUnaryOp(tok, tok.Type, p.parseUnaryExpr())
	}
	return p.parseCallExpr()
}

func (p *Parser) parseCallExpr() *ast.Node {
	tok := p.current
	if !p.check(token.Ident) || p.peek().Type != token.LParen {
		return p.parsePrimaryExpr()
	}
	p.advance()
	p.advance()

	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after arguments")
	return p.arena.NewFuncCall(tok, tok.Value, args)
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		return p.arena.NewNumber(tok, tok.Literal.(int64))
	case p.match(token.String):
		return p.arena.NewString(tok, tok.Literal.(string))
	case p.match(token.True, token.False):
		return p.arena.NewBool(tok, tok.Type == token.True)
	case p.match(token.Ident):
		return p.arena.NewIdent(tok, tok.Value)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "expected ')' after expression")
		return expr
	}
	p.fail(tok, "expected an expression")
	return nil
}
