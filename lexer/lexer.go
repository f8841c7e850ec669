// Package lexer is a concrete token.Stream over script text (spec.md §6).
// The tokenizer is formally an external collaborator the core only
// interfaces with (spec.md §1); this is the minimal hand-rolled scanner
// needed to drive the compiler end-to-end from literal script text, in the
// same switch-on-byte, no-parser-generator style as go-interpreter/wagon's
// exec/internal/compile scanner.
package lexer

import (
	"fmt"

	"github.com/binspec/binspec/token"
)

// Lexer scans script text into a token.Stream.
type Lexer struct {
	src     string
	pos     int
	peeked  *token.Token
	peekErr error
}

// New returns a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src}
}

var _ token.Stream = (*Lexer)(nil)

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (token.Token, error) {
	if l.peeked == nil {
		t, err := l.scan()
		l.peeked = &t
		l.peekErr = err
	}
	return *l.peeked, l.peekErr
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (token.Token, error) {
	if l.peeked != nil {
		t, err := *l.peeked, l.peekErr
		l.peeked = nil
		l.peekErr = nil
		return t, err
	}
	return l.scan()
}

func (l *Lexer) scan() (token.Token, error) {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '{':
		l.pos++
		return token.Token{Kind: token.LBrace, Text: "{", Pos: start}, nil
	case c == '}':
		l.pos++
		return token.Token{Kind: token.RBrace, Text: "}", Pos: start}, nil
	case c == '[':
		l.pos++
		return token.Token{Kind: token.LBracket, Text: "[", Pos: start}, nil
	case c == ']':
		l.pos++
		return token.Token{Kind: token.RBracket, Text: "]", Pos: start}, nil
	case c == '(':
		l.pos++
		return token.Token{Kind: token.LParen, Text: "(", Pos: start}, nil
	case c == ')':
		l.pos++
		return token.Token{Kind: token.RParen, Text: ")", Pos: start}, nil
	case c == ';':
		l.pos++
		return token.Token{Kind: token.Semicolon, Text: ";", Pos: start}, nil
	case c == ':':
		l.pos++
		return token.Token{Kind: token.Colon, Text: ":", Pos: start}, nil
	case c == ',':
		l.pos++
		return token.Token{Kind: token.Comma, Text: ",", Pos: start}, nil
	case c == '_' && !isIdentStart(l.peekAt(1)):
		l.pos++
		return token.Token{Kind: token.Underscore, Text: "_", Pos: start}, nil
	case c == '.':
		l.pos++
		return token.Token{Kind: token.Dot, Text: ".", Pos: start}, nil
	case c == '+':
		l.pos++
		return token.Token{Kind: token.Plus, Text: "+", Pos: start}, nil
	case c == '-':
		l.pos++
		return token.Token{Kind: token.Minus, Text: "-", Pos: start}, nil
	case c == '*':
		l.pos++
		return token.Token{Kind: token.Star, Text: "*", Pos: start}, nil
	case c == '/':
		l.pos++
		return token.Token{Kind: token.Slash, Text: "/", Pos: start}, nil
	case c == '%':
		l.pos++
		return token.Token{Kind: token.Percent, Text: "%", Pos: start}, nil
	case c == '&':
		l.pos++
		return token.Token{Kind: token.Amp, Text: "&", Pos: start}, nil
	case c == '|':
		l.pos++
		return token.Token{Kind: token.Pipe, Text: "|", Pos: start}, nil
	case c == '^':
		l.pos++
		return token.Token{Kind: token.Caret, Text: "^", Pos: start}, nil
	case c == '~':
		l.pos++
		return token.Token{Kind: token.Tilde, Text: "~", Pos: start}, nil
	case c == '<':
		return l.scanLt(start), nil
	case c == '>':
		return l.scanGt(start), nil
	case isDigit(c):
		return l.scanNumber(start), nil
	case isIdentStart(c):
		return l.scanIdent(start), nil
	default:
		return token.Token{}, fmt.Errorf("lexer: unexpected character %q at offset %d", c, start)
	}
}

func (l *Lexer) scanLt(start int) token.Token {
	if l.peekAt(1) == '<' {
		l.pos += 2
		return token.Token{Kind: token.Shl, Text: "<<", Pos: start}
	}
	l.pos++
	return token.Token{Kind: token.Lt, Text: "<", Pos: start}
}

func (l *Lexer) scanGt(start int) token.Token {
	if l.peekAt(1) == '>' && l.peekAt(2) == '>' {
		l.pos += 3
		return token.Token{Kind: token.Ushr, Text: ">>>", Pos: start}
	}
	if l.peekAt(1) == '>' {
		l.pos += 2
		return token.Token{Kind: token.Shr, Text: ">>", Pos: start}
	}
	l.pos++
	return token.Token{Kind: token.Gt, Text: ">", Pos: start}
}

func (l *Lexer) scanNumber(start int) token.Token {
	if l.peekAt(0) == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		return token.Token{Kind: token.Number, Text: l.src[start:l.pos], Pos: start}
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	return token.Token{Kind: token.Number, Text: l.src[start:l.pos], Pos: start}
}

func (l *Lexer) scanIdent(start int) token.Token {
	l.pos++
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	text := l.src[start:l.pos]
	if kind, ok := token.Lookup(text); ok {
		return token.Token{Kind: kind, Text: text, Pos: start}
	}
	return token.Token{Kind: token.Ident, Text: text, Pos: start}
}

func (l *Lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) peekAt(offset int) byte {
	i := l.pos + offset
	if i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
