package lexer

import (
	"strconv"
	"strings"

	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/token"
	"github.com/quinlang/qlc/pkg/util"
)

const (
	maxWord   = 65535
	maxSigned = 32767
)

type Lexer struct {
	source   []rune
	pos      int
	line     int
	column   int
	cfg      *config.Config
	warnings util.Warnings
}

func NewLexer(source []rune, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{source: source, line: 1, column: 1, cfg: cfg}
}

// Reset rewinds the lexer to the start of its source.
func (l *Lexer) Reset() {
	l.pos, l.line, l.column = 0, 1, 1
	l.warnings = util.Warnings{}
}

func (l *Lexer) Warnings() []*util.Diagnostic { return l.warnings.List() }

// Tokenize lexes the whole source. The returned slice always ends with EOF.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, startPos, startCol, startLine), nil
		}

		if l.peek() == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatCComments) {
			l.lineComment()
			continue
		}

		ch := l.peek()
		if isAlpha(ch) {
			l.advance()
			return l.identifierOrKeyword(startPos, startCol, startLine), nil
		}
		if isDigit(ch) {
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '(': return l.makeToken(token.LParen, startPos, startCol, startLine), nil
		case ')': return l.makeToken(token.RParen, startPos, startCol, startLine), nil
		case '{': return l.makeToken(token.LBrace, startPos, startCol, startLine), nil
		case '}': return l.makeToken(token.RBrace, startPos, startCol, startLine), nil
		case ',': return l.makeToken(token.Comma, startPos, startCol, startLine), nil
		case '.': return l.makeToken(token.Dot, startPos, startCol, startLine), nil
		case ';': return l.makeToken(token.Semi, startPos, startCol, startLine), nil
		case ':': return l.makeToken(token.Colon, startPos, startCol, startLine), nil
		case '+': return l.makeToken(token.Plus, startPos, startCol, startLine), nil
		case '-': return l.makeToken(token.Minus, startPos, startCol, startLine), nil
		case '*': return l.makeToken(token.Star, startPos, startCol, startLine), nil
		case '/': return l.makeToken(token.Slash, startPos, startCol, startLine), nil
		case '=': return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine), nil
		case '!': return l.matchThen('=', token.Neq, token.Not, startPos, startCol, startLine), nil
		case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
		case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
		case '"':
			return l.stringLiteral(startPos, startCol, startLine)
		}

		tok := l.makeToken(token.EOF, startPos, startCol, startLine)
		return tok, util.Errorf(util.LexicalError, tok, "unexpected character: '%c'", ch)
	}
}

// Identifiers and numbers are ASCII only; other runes are rejected as
// unexpected characters.
func isAlpha(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: string(l.source[startPos:l.pos]),
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, sPos, sCol, sLine)
	}
	return l.makeToken(elseType, sPos, sCol, sLine)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isAlpha(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Ident, startPos, startCol, startLine)

	if tokType, isKeyword := token.KeywordMap[tok.Value]; isKeyword {
		tok.Type = tokType
		switch tokType {
		case token.True:
			tok.Literal = true
		case token.False:
			tok.Literal = false
		}
	}
	return tok
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) (token.Token, error) {
	for isDigit(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Number, startPos, startCol, startLine)

	val, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil || val > maxWord {
		return tok, util.Errorf(util.LexicalError, tok, "integer constant '%s' does not fit in 16 bits", tok.Value)
	}
	if val > maxSigned {
		l.warnings.Add(util.Warn(l.cfg, config.WarnOverflow, tok, "integer constant %d wraps to %d", val, int16(val)))
	}
	tok.Literal = val
	return tok, nil
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb strings.Builder
	for !l.isAtEnd() && l.peek() != '"' {
		if l.peek() == '\n' {
			break
		}
		ch := l.advance()
		if ch != '\\' {
			sb.WriteRune(ch)
			continue
		}
		escPos, escCol := l.pos-1, l.column-1
		switch esc := l.advance(); esc {
		case 'n':
			sb.WriteRune('\n')
		case 't':
			sb.WriteRune('\t')
		case 'r':
			sb.WriteRune('\r')
		case '0':
			sb.WriteRune(0)
		case '\\', '"':
			sb.WriteRune(esc)
		default:
			tok := l.makeToken(token.String, escPos, escCol, l.line)
			return tok, util.Errorf(util.LexicalError, tok, "unknown escape sequence '\\%c'", esc)
		}
	}

	if !l.match('"') {
		tok := l.makeToken(token.String, startPos, startCol, startLine)
		return tok, util.Errorf(util.LexicalError, tok, "unterminated string literal")
	}

	tok := l.makeToken(token.String, startPos, startCol, startLine)
	tok.Literal = sb.String()
	return tok, nil
}
