package eval

import (
	"github.com/binspec/binspec/token"
)

// Compile reads one expression from ts — literals, dotted named-field
// references, the reserved stream-counter identifier, the fixed operator
// set, and parentheses — and produces a postfix Expr ready for repeated
// evaluation. It stops at (without consuming) the first token that cannot
// continue the expression, so callers can keep reading the enclosing
// `[...]`, `align:`/`skip:` directive, etc.
func Compile(ts token.Stream) (*Expr, error) {
	p := &parser{ts: ts}
	toks, err := p.expr(1)
	if err != nil {
		return nil, err
	}
	return &Expr{Tokens: toks}, nil
}

type parser struct {
	ts token.Stream
}

// precedence: higher binds tighter. Mirrors the fixed operator set of
// spec.md §4.3 in the order C and Java use, loosest first: | then ^ then &
// then << >> >>> then + - then * / %.
func binOp(k token.Kind) (level int, op Op, ok bool) {
	switch k {
	case token.Pipe:
		return 1, OpOr, true
	case token.Caret:
		return 2, OpXor, true
	case token.Amp:
		return 3, OpAnd, true
	case token.Shl:
		return 4, OpShl, true
	case token.Shr:
		return 4, OpShr, true
	case token.Ushr:
		return 4, OpUshr, true
	case token.Plus:
		return 5, OpAdd, true
	case token.Minus:
		return 5, OpSub, true
	case token.Star:
		return 6, OpMul, true
	case token.Slash:
		return 6, OpDiv, true
	case token.Percent:
		return 6, OpMod, true
	default:
		return 0, 0, false
	}
}

func (p *parser) expr(minPrec int) ([]Token, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.ts.Peek()
		if err != nil {
			return nil, err
		}
		level, op, ok := binOp(tok.Kind)
		if !ok || level < minPrec {
			break
		}
		if _, err := p.ts.Next(); err != nil {
			return nil, err
		}
		rhs, err := p.expr(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = append(lhs, rhs...)
		lhs = append(lhs, Token{Op: op})
	}
	return lhs, nil
}

func (p *parser) unary() ([]Token, error) {
	tok, err := p.ts.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.Minus:
		p.ts.Next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return append(operand, Token{Op: OpNeg}), nil
	case token.Tilde:
		p.ts.Next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return append(operand, Token{Op: OpNot}), nil
	case token.Plus:
		p.ts.Next()
		return p.unary()
	default:
		return p.primary()
	}
}

func (p *parser) primary() ([]Token, error) {
	tok, err := p.ts.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.Number:
		v, err := token.ParseNumber(tok.Text)
		if err != nil {
			return nil, err
		}
		return []Token{{Op: OpLiteral, Literal: v}}, nil
	case token.Ident:
		name, err := p.dottedName(tok.Text)
		if err != nil {
			return nil, err
		}
		if name == token.StreamCounterName {
			return []Token{{Op: OpCounter}}, nil
		}
		return []Token{{Op: OpField, Name: name}}, nil
	case token.LParen:
		inner, err := p.expr(1)
		if err != nil {
			return nil, err
		}
		closing, err := p.ts.Next()
		if err != nil {
			return nil, err
		}
		if closing.Kind != token.RParen {
			return nil, errExpected(")", closing)
		}
		return inner, nil
	default:
		return nil, errExpected("expression operand", tok)
	}
}

// dottedName consumes the "." Ident "." Ident ... continuation of a dotted
// identifier that began with first.
func (p *parser) dottedName(first string) (string, error) {
	name := first
	for {
		tok, err := p.ts.Peek()
		if err != nil {
			return "", err
		}
		if tok.Kind != token.Dot {
			return name, nil
		}
		p.ts.Next()
		part, err := p.ts.Next()
		if err != nil {
			return "", err
		}
		if part.Kind != token.Ident {
			return "", errExpected("identifier after '.'", part)
		}
		name = name + "." + part.Text
	}
}
