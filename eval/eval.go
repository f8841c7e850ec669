// Package eval implements the integer expression evaluator of spec.md
// §4.3: a fixed operator set, compiled to postfix at compile time so that
// evaluation at parse time is a flat stack walk, never a per-field parse.
package eval

import (
	"github.com/binspec/binspec/errs"
)

// Op identifies one postfix operator or operand kind.
type Op int

const (
	OpLiteral Op = iota
	OpField       // named-field reference
	OpCounter     // current stream byte counter
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpNot  // unary bitwise complement
	OpNeg  // unary minus
	OpShl
	OpShr
	OpUshr
)

// Token is one element of a compiled postfix expression.
type Token struct {
	Op      Op
	Literal int64
	Name    string // set when Op == OpField
}

// Expr is a compiled expression: a flat postfix token list, ready to
// evaluate without re-parsing.
type Expr struct {
	Tokens []Token
}

// FieldValues resolves named-field references during evaluation. The
// interpreter builds the concrete implementation (the NamedNumericFieldMap of
// spec.md §3), scoped to the current struct nesting.
type FieldValues interface {
	// Lookup resolves name against the live named-numeric-field map,
	// walking outward from the current scope first (spec.md §4.3).
	Lookup(name string) (int64, bool)
}

// ExternalValues is queried for a name FieldValues could not resolve.
type ExternalValues interface {
	Get(name string) (int64, bool)
}

// Counter supplies the current stream byte counter for the stream-counter
// token.
type Counter interface {
	Counter() int64
}

// Eval evaluates e against the given field map, optional external
// provider, and stream counter, returning a 32-bit two's-complement result
// with wraparound semantics (spec.md §4.3).
func Eval(e *Expr, fields FieldValues, external ExternalValues, counter Counter) (int32, error) {
	var stack []int32
	push := func(v int32) { stack = append(stack, v) }
	pop := func() int32 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, t := range e.Tokens {
		switch t.Op {
		case OpLiteral:
			push(int32(t.Literal))
		case OpCounter:
			push(int32(counter.Counter()))
		case OpField:
			v, ok := fields.Lookup(t.Name)
			if !ok && external != nil {
				v, ok = external.Get(t.Name)
			}
			if !ok {
				return 0, errs.UnknownField(t.Name)
			}
			push(int32(v))
		case OpNeg:
			push(-pop())
		case OpNot:
			push(^pop())
		default:
			b := pop()
			a := pop()
			v, err := binary(t.Op, a, b)
			if err != nil {
				return 0, err
			}
			push(v)
		}
	}
	if len(stack) != 1 {
		return 0, errs.Compile("expression did not reduce to a single value")
	}
	return stack[0], nil
}

func binary(op Op, a, b int32) (int32, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, errs.Arithmetic("division by zero")
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return 0, errs.Arithmetic("modulo by zero")
		}
		return a % b, nil
	case OpAnd:
		return a & b, nil
	case OpOr:
		return a | b, nil
	case OpXor:
		return a ^ b, nil
	case OpShl:
		return a << (uint32(b) & 31), nil
	case OpShr:
		return a >> (uint32(b) & 31), nil
	case OpUshr:
		// Unsigned right shift: mask to 32 bits first so a wider (int64
		// internally typed) backend can never leak sign-extended bits into
		// the result (spec.md §9 open question (b)).
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	default:
		return 0, errs.Compile("unknown operator in compiled expression")
	}
}
