package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Ident
	Number
	String
	Fn
	Let
	Return
	If
	Else
	While
	True
	False
	Int
	Str
	Void
	Print
	LParen
	RParen
	LBrace
	RBrace
	Comma
	Dot
	Semi
	Colon
	Plus
	Minus
	Star
	Slash
	Eq
	EqEq
	Not
	Neq
	Gt
	Gte
	Lt
	Lte
)

var KeywordMap = map[string]Type{
	"fn":     Fn,
	"let":    Let,
	"return": Return,
	"if":     If,
	"else":   Else,
	"while":  While,
	"true":   True,
	"false":  False,
	"int":    Int,
	"str":    Str,
	"void":   Void,
	"print":  Print,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = map[Type]string{
	EOF:    "end of input",
	Ident:  "identifier",
	Number: "number",
	String: "string",
	LParen: "(",
	RParen: ")",
	LBrace: "{",
	RBrace: "}",
	Comma:  ",",
	Dot:    ".",
	Semi:   ";",
	Colon:  ":",
	Plus:   "+",
	Minus:  "-",
	Star:   "*",
	Slash:  "/",
	Eq:     "=",
	EqEq:   "==",
	Not:    "!",
	Neq:    "!=",
	Gt:     ">",
	Gte:    ">=",
	Lt:     "<",
	Lte:    "<=",
}

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is immutable once produced by the lexer. Literal holds the parsed
// value for numbers (int64), strings (string) and true/false (bool).
type Token struct {
	Type    Type
	Value   string
	Line    int
	Column  int
	Len     int
	Literal any
}

func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' %v (@%d:%d)", t.Type, t.Value, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' (@%d:%d)", t.Type, t.Value, t.Line, t.Column)
}
