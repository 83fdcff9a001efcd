// Package types holds QuinLang's closed set of value types.
package types

// Type is compared by value; two Types are the same type iff they are ==.
type Type struct {
	Name string
	Size int
}

var (
	Int  = Type{Name: "int", Size: 2}
	Str  = Type{Name: "str", Size: 2}
	Bool = Type{Name: "bool", Size: 1}
	Void = Type{Name: "void", Size: 0}
)

var builtin = map[string]Type{
	"int":  Int,
	"str":  Str,
	"bool": Bool,
	"void": Void,
}

func (t Type) String() string { return t.Name }

// FromName resolves a type name. Unknown names resolve to Int with known
// set to false so the caller can report them.
func FromName(name string) (t Type, known bool) {
	if t, ok := builtin[name]; ok {
		return t, true
	}
	return Int, false
}
