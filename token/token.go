// Package token defines the output contract of the script tokenizer. The
// tokenizer itself is an external collaborator (spec.md §1): this package
// only fixes the shape the compiler consumes, via the Stream interface.
package token

import "strconv"

// Kind classifies a Token.
type Kind int

const (
	EOF Kind = iota
	Ident        // bare identifier: a field name, a custom type name, or a name reference in an expression
	Number       // decimal or hex literal
	KwBit        // "bit"
	KwBool       // "bool"
	KwByte       // "byte"
	KwUByte      // "ubyte"
	KwShort      // "short"
	KwUShort     // "ushort"
	KwInt        // "int"
	KwLong       // "long"
	KwVar        // "var"
	KwAlign      // "align"
	KwSkip       // "skip"
	KwReset      // "reset$$"
	LBrace       // "{"
	RBrace       // "}"
	LBracket     // "["
	RBracket     // "]"
	Underscore   // "_"
	Lt           // "<" (little-endian prefix)
	Gt           // ">" (big-endian prefix)
	Colon        // ":"
	Semicolon    // ";"
	Dot          // "." (dotted identifier separator)
	Comma        // ","
	LParen       // "("
	RParen       // ")"
	Plus         // "+"
	Minus        // "-"
	Star         // "*"
	Slash        // "/"
	Percent      // "%"
	Amp          // "&"
	Pipe         // "|"
	Caret        // "^"
	Tilde        // "~"
	Shl          // "<<"
	Shr          // ">>"
	Ushr         // ">>>"
)

// Token is one lexical unit of script text.
type Token struct {
	Kind Kind
	Text string
	Pos  int
}

// Stream is the token source the compiler reads from. A concrete
// implementation (see package lexer) turns script text into this
// interface; the compiler never depends on how that happens.
type Stream interface {
	// Next consumes and returns the next token. Calling Next past EOF
	// returns a Token{Kind: EOF} repeatedly, never an error.
	Next() (Token, error)
	// Peek returns the next token without consuming it.
	Peek() (Token, error)
}

// keywords maps the fixed set of script keywords to their Kind. Anything
// not in this table lexes as Ident (a name, or a custom type word).
var keywords = map[string]Kind{
	"bit":     KwBit,
	"bool":    KwBool,
	"byte":    KwByte,
	"ubyte":   KwUByte,
	"short":   KwShort,
	"ushort":  KwUShort,
	"int":     KwInt,
	"long":    KwLong,
	"var":     KwVar,
	"align":   KwAlign,
	"skip":    KwSkip,
	"reset$$": KwReset,
}

// Lookup classifies ident as a keyword Kind if it is one; otherwise ok is
// false and the caller treats ident as an Ident.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// ParseNumber converts a Number token's text (decimal or 0x-prefixed hex)
// to an int64.
func ParseNumber(text string) (int64, error) {
	if len(text) > 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		v, err := strconv.ParseUint(text[2:], 16, 64)
		return int64(v), err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	return v, err
}

// StreamCounterName is the reserved identifier that resolves to the
// stream-counter token in an expression (spec.md §4.3) rather than to a
// named field.
const StreamCounterName = "$$pos"
