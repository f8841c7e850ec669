package compiler

import (
	"fmt"

	"github.com/binspec/binspec/bytecode"
	"github.com/binspec/binspec/errs"
	"github.com/binspec/binspec/eval"
	"github.com/binspec/binspec/field"
	"github.com/binspec/binspec/token"
)

// arrayMode classifies how (or whether) a field/struct repeats, mirroring
// the FlagArray/ExtFlagExpressionOrWholeStream combinations of spec.md §4.4
// step 5.
type arrayMode int

const (
	arrayNone arrayMode = iota
	arrayLiteral
	arrayExpr
	arrayWholeStream
)

// scope tracks one level of struct nesting while compiling: the dotted path
// prefix new names are qualified with, the names already declared directly
// inside it (for the duplicate-name check), and a link outward so a
// reference can be resolved against any enclosing scope.
type scope struct {
	parent *scope
	path   string
	depth  int
	names  map[string]bool
}

func (s *scope) declare(name string) error {
	if s.names[name] {
		return errs.Compile(fmt.Sprintf("duplicate field name %q", name))
	}
	s.names[name] = true
	return nil
}

type compiler struct {
	ts             token.Stream
	code           []byte
	namedFields    []field.Info
	sizeEvaluators []*eval.Expr
	customTypes    []CustomTypeDescriptor
	hasVarFields   bool
	hasEvalArrays  bool
}

// Compile reads an entire script from ts and produces its CompiledBlock.
//
// Forward references (an expression naming a field whose declaration
// hasn't been reached yet) are not statically distinguished from
// external-provider names: both simply fail to resolve in the
// NamedNumericFieldMap at evaluation time and fall through to the
// ExternalValueProvider, surfacing as UnknownField only if that also
// misses. A full forward-reference check would need a second pass over
// the token stream to know every name the script will ever declare.
func Compile(ts token.Stream) (*CompiledBlock, error) {
	c := &compiler{ts: ts}
	root := &scope{path: "", depth: -1, names: map[string]bool{}}
	if err := c.compileBody(root, false); err != nil {
		return nil, err
	}
	tok, err := c.ts.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.EOF {
		return nil, errs.Compile(fmt.Sprintf("unexpected token %q after script body", tok.Text))
	}
	return &CompiledBlock{
		Code:                  c.code,
		NamedFields:           c.namedFields,
		SizeEvaluators:        c.sizeEvaluators,
		CustomTypeDescriptors: c.customTypes,
		HasVarFields:          c.hasVarFields,
		HasEvaluatedArrays:    c.hasEvalArrays,
	}, nil
}

func (c *compiler) expect(k token.Kind, what string) (token.Token, error) {
	tok, err := c.ts.Next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != k {
		return tok, errs.Compile(fmt.Sprintf("expected %s, got %q", what, tok.Text))
	}
	return tok, nil
}

// compileBody compiles statements until it sees '}' (left for the caller to
// consume) or EOF. insideWholeStream is true when some enclosing struct is
// itself a whole-stream ([_]) array, which forbids another one nested
// inside it (spec.md §4.2, §9).
func (c *compiler) compileBody(sc *scope, insideWholeStream bool) error {
	for {
		tok, err := c.ts.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == token.EOF || tok.Kind == token.RBrace {
			return nil
		}
		if err := c.compileStatement(sc, insideWholeStream); err != nil {
			return err
		}
	}
}

func (c *compiler) compileStatement(sc *scope, insideWholeStream bool) error {
	tok, err := c.ts.Peek()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case token.KwAlign:
		c.ts.Next()
		present, lit, expr, err := c.parseExtra()
		if err != nil {
			return err
		}
		if !present {
			return errs.Compile("align directive requires a ':' value")
		}
		if _, err := c.expect(token.Semicolon, "';'"); err != nil {
			return err
		}
		c.emit(sc, inst{typeCode: bytecode.Align, hasExtra: present, extraLiteral: lit, extraExpr: expr})
		return nil
	case token.KwSkip:
		c.ts.Next()
		present, lit, expr, err := c.parseExtra()
		if err != nil {
			return err
		}
		if !present {
			return errs.Compile("skip directive requires a ':' value")
		}
		if _, err := c.expect(token.Semicolon, "';'"); err != nil {
			return err
		}
		c.emit(sc, inst{typeCode: bytecode.Skip, hasExtra: present, extraLiteral: lit, extraExpr: expr})
		return nil
	case token.KwReset:
		c.ts.Next()
		if _, err := c.expect(token.Semicolon, "';'"); err != nil {
			return err
		}
		c.emit(sc, inst{typeCode: bytecode.ResetCounter})
		return nil
	default:
		return c.compileField(sc, insideWholeStream)
	}
}

// parseExtra reads an optional ":" <literal-or-parenthesized-expr> extra
// parameter. present is false if there was no ':' at all.
func (c *compiler) parseExtra() (present bool, literal int64, expr *eval.Expr, err error) {
	tok, err := c.ts.Peek()
	if err != nil {
		return false, 0, nil, err
	}
	if tok.Kind != token.Colon {
		return false, 0, nil, nil
	}
	c.ts.Next()
	lit, e, err := c.parseLiteralOrExpr()
	if err != nil {
		return false, 0, nil, err
	}
	return true, lit, e, nil
}

// parseLiteralOrExpr compiles one expression and, if it reduces to a bare
// literal (no operators at all), reports it as a literal instead — so
// purely-constant sites never pay for a size_evaluators slot.
func (c *compiler) parseLiteralOrExpr() (int64, *eval.Expr, error) {
	e, err := eval.Compile(c.ts)
	if err != nil {
		return 0, nil, err
	}
	if len(e.Tokens) == 1 && e.Tokens[0].Op == eval.OpLiteral {
		return e.Tokens[0].Literal, nil, nil
	}
	return 0, e, nil
}

// parseArraySuffix reads an optional "[" ... "]" array suffix: "[_]" for a
// whole-stream repeat, "[<literal>]" for a fixed count, "[<expr>]" for an
// evaluated count. Returns arrayNone if there is no '[' at all.
func (c *compiler) parseArraySuffix() (arrayMode, int64, *eval.Expr, error) {
	tok, err := c.ts.Peek()
	if err != nil {
		return arrayNone, 0, nil, err
	}
	if tok.Kind != token.LBracket {
		return arrayNone, 0, nil, nil
	}
	c.ts.Next()
	inner, err := c.ts.Peek()
	if err != nil {
		return arrayNone, 0, nil, err
	}
	if inner.Kind == token.Underscore {
		c.ts.Next()
		if _, err := c.expect(token.RBracket, "']'"); err != nil {
			return arrayNone, 0, nil, err
		}
		return arrayWholeStream, 0, nil, nil
	}
	lit, e, err := c.parseLiteralOrExpr()
	if err != nil {
		return arrayNone, 0, nil, err
	}
	if _, err := c.expect(token.RBracket, "']'"); err != nil {
		return arrayNone, 0, nil, err
	}
	if e != nil {
		return arrayExpr, 0, e, nil
	}
	return arrayLiteral, lit, nil, nil
}

// compileField compiles one byte-order-prefixed field or nested-struct
// statement.
func (c *compiler) compileField(sc *scope, insideWholeStream bool) error {
	littleEndian := false
	tok, err := c.ts.Peek()
	if err != nil {
		return err
	}
	if tok.Kind == token.Lt || tok.Kind == token.Gt {
		c.ts.Next()
		littleEndian = tok.Kind == token.Lt
		tok, err = c.ts.Peek()
		if err != nil {
			return err
		}
	}

	switch tok.Kind {
	case token.KwBit:
		c.ts.Next()
		present, lit, expr, err := c.parseExtra()
		if err != nil {
			return err
		}
		if !present {
			return errs.Compile("bit field requires a ':' width")
		}
		if expr == nil && (lit < 1 || lit > 8) {
			return errs.Compile(fmt.Sprintf("bit width %d outside 1..8", lit))
		}
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Bit, littleEndian, true, lit, expr)
	case token.KwBool:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Bool, littleEndian, false, 0, nil)
	case token.KwByte:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Byte, littleEndian, false, 0, nil)
	case token.KwUByte:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.UByte, littleEndian, false, 0, nil)
	case token.KwShort:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Short, littleEndian, false, 0, nil)
	case token.KwUShort:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.UShort, littleEndian, false, 0, nil)
	case token.KwInt:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Int, littleEndian, false, 0, nil)
	case token.KwLong:
		c.ts.Next()
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Long, littleEndian, false, 0, nil)
	case token.KwVar:
		c.ts.Next()
		// var's extra is optional in script text but always emitted: a
		// literal 0 when the script gave none, so the interpreter never has
		// to guess whether a VAR instruction carries an extra slot.
		_, lit, expr, err := c.parseExtra()
		if err != nil {
			return err
		}
		return c.compileAtomicField(sc, insideWholeStream, bytecode.Var, littleEndian, true, lit, expr)
	case token.Ident:
		return c.compileIdentLed(sc, insideWholeStream, littleEndian, tok.Text)
	default:
		return errs.Compile(fmt.Sprintf("unexpected token %q starting a field or struct", tok.Text))
	}
}

// compileIdentLed handles the two statement shapes that begin with a bare
// identifier: a nested struct declaration ("Name [array]? { ... }") or a
// custom-type field ("TypeName [array]? FieldName ;").
func (c *compiler) compileIdentLed(sc *scope, insideWholeStream bool, littleEndian bool, identA string) error {
	c.ts.Next() // consume identA

	mode, lit, expr, err := c.parseArraySuffix()
	if err != nil {
		return err
	}

	next, err := c.ts.Peek()
	if err != nil {
		return err
	}
	switch next.Kind {
	case token.LBrace:
		return c.compileStruct(sc, insideWholeStream, identA, mode, lit, expr)
	case token.Ident:
		c.ts.Next()
		name := next.Text
		idx := len(c.customTypes)
		c.customTypes = append(c.customTypes, CustomTypeDescriptor{TypeName: identA})
		if _, err := c.expect(token.Semicolon, "';'"); err != nil {
			return err
		}
		if err := sc.declare(name); err != nil {
			return err
		}
		if mode == arrayWholeStream && insideWholeStream {
			return errs.Compile(fmt.Sprintf("%q: nested whole-stream array inside an enclosing whole-stream array", name))
		}
		c.emit(sc, inst{
			typeCode:        bytecode.CustomType,
			name:            name,
			littleEndian:    littleEndian,
			arrayMode:       mode,
			arrayLiteral:    lit,
			arrayExpr:       expr,
			customTypeIndex: idx,
		})
		return nil
	default:
		return errs.Compile(fmt.Sprintf("expected '{' or a field name after %q, got %q", identA, next.Text))
	}
}

// compileAtomicField compiles a primitive-type field statement once the
// type keyword (and any bit-width extra) has already been consumed.
func (c *compiler) compileAtomicField(sc *scope, insideWholeStream bool, typeCode bytecode.TypeCode, littleEndian bool, hasExtra bool, extraLit int64, extraExpr *eval.Expr) error {
	mode, lit, expr, err := c.parseArraySuffix()
	if err != nil {
		return err
	}
	nameTok, err := c.expect(token.Ident, "field name")
	if err != nil {
		return err
	}
	if _, err := c.expect(token.Semicolon, "';'"); err != nil {
		return err
	}
	if mode == arrayWholeStream && insideWholeStream {
		return errs.Compile(fmt.Sprintf("%q: nested whole-stream array inside an enclosing whole-stream array", nameTok.Text))
	}
	if err := sc.declare(nameTok.Text); err != nil {
		return err
	}
	c.emit(sc, inst{
		typeCode:     typeCode,
		name:         nameTok.Text,
		littleEndian: littleEndian,
		arrayMode:    mode,
		arrayLiteral: lit,
		arrayExpr:    expr,
		hasExtra:     hasExtra,
		extraLiteral: extraLit,
		extraExpr:    extraExpr,
	})
	return nil
}

// compileStruct compiles a nested-struct statement: emits STRUCT_START,
// recursively compiles the body, patches the back-pointer, and emits
// STRUCT_END. name, mode/lit/expr describe the struct itself (already
// parsed by the caller); the opening "{" is still unconsumed on entry.
func (c *compiler) compileStruct(sc *scope, insideWholeStream bool, name string, mode arrayMode, lit int64, expr *eval.Expr) error {
	if mode == arrayWholeStream && insideWholeStream {
		return errs.Compile(fmt.Sprintf("%q: nested whole-stream array inside an enclosing whole-stream array", name))
	}
	if err := sc.declare(name); err != nil {
		return err
	}
	if _, err := c.expect(token.LBrace, "'{'"); err != nil {
		return err
	}

	ptrSlot := c.emitStructStart(sc, name, mode, lit, expr)

	path := name
	if sc.path != "" {
		path = sc.path + "." + name
	}
	child := &scope{parent: sc, path: path, depth: sc.depth + 1, names: map[string]bool{}}

	bodyStart := len(c.code)
	nowWholeStream := insideWholeStream || mode == arrayWholeStream
	if err := c.compileBody(child, nowWholeStream); err != nil {
		return err
	}
	if _, err := c.expect(token.RBrace, "'}'"); err != nil {
		return err
	}

	bytecode.PutFixedPointer(c.code[ptrSlot:ptrSlot+bytecode.PtrWidth], uint64(bodyStart))
	c.emitStructEnd(bodyStart)
	return nil
}

// inst describes one non-struct instruction for emit.
type inst struct {
	typeCode     bytecode.TypeCode
	name         string
	littleEndian bool
	arrayMode    arrayMode
	arrayLiteral int64
	arrayExpr    *eval.Expr

	hasExtra     bool
	extraLiteral int64
	extraExpr    *eval.Expr

	customTypeIndex int
}

// emit appends one atomic/var/custom-type instruction to the code stream
// and updates the side tables, following the byte layout of spec.md §4.4:
// opcode, optional extension byte, then packed ints in the fixed order
// array-length-literal, extra-literal, custom-type-index. Evaluator
// expressions push into size_evaluators in the same order the interpreter
// will consume them: extra before array length (step 4 before step 5).
func (c *compiler) emit(sc *scope, in inst) {
	opcode := byte(in.typeCode)
	if in.name != "" {
		opcode |= bytecode.FlagNamed
	}
	arrayFlag := in.arrayMode == arrayLiteral || in.arrayMode == arrayExpr
	if arrayFlag {
		opcode |= bytecode.FlagArray
	}
	if in.littleEndian {
		opcode |= bytecode.FlagLittleEndian
	}
	extraIsExpr := in.hasExtra && in.extraExpr != nil
	wide := extraIsExpr || in.arrayMode == arrayExpr || in.arrayMode == arrayWholeStream
	if wide {
		opcode |= bytecode.FlagWide
	}
	c.code = append(c.code, opcode)
	if wide {
		var ext byte
		if extraIsExpr {
			ext |= bytecode.ExtFlagExtraAsExpression
		}
		if in.arrayMode == arrayExpr || in.arrayMode == arrayWholeStream {
			ext |= bytecode.ExtFlagExpressionOrWholeStream
		}
		c.code = append(c.code, ext)
	}
	if in.arrayMode == arrayLiteral {
		c.code = bytecode.PutUvarint(c.code, uint64(in.arrayLiteral))
	}
	if in.hasExtra && !extraIsExpr {
		c.code = bytecode.PutUvarint(c.code, uint64(in.extraLiteral))
	}
	if in.typeCode == bytecode.CustomType {
		c.code = bytecode.PutUvarint(c.code, uint64(in.customTypeIndex))
	}

	if extraIsExpr {
		c.sizeEvaluators = append(c.sizeEvaluators, in.extraExpr)
	}
	if in.arrayMode == arrayExpr {
		c.sizeEvaluators = append(c.sizeEvaluators, in.arrayExpr)
		c.hasEvalArrays = true
	}
	if in.typeCode == bytecode.Var {
		c.hasVarFields = true
	}
	if in.name != "" {
		c.pushNamed(sc, in.name)
	}
}

func (c *compiler) emitStructStart(sc *scope, name string, mode arrayMode, lit int64, expr *eval.Expr) int {
	opcode := byte(bytecode.StructStart)
	if name != "" {
		opcode |= bytecode.FlagNamed
	}
	arrayFlag := mode == arrayLiteral || mode == arrayExpr
	if arrayFlag {
		opcode |= bytecode.FlagArray
	}
	wide := mode == arrayExpr || mode == arrayWholeStream
	if wide {
		opcode |= bytecode.FlagWide
	}
	c.code = append(c.code, opcode)
	if wide {
		c.code = append(c.code, bytecode.ExtFlagExpressionOrWholeStream)
	}
	if mode == arrayLiteral {
		c.code = bytecode.PutUvarint(c.code, uint64(lit))
	}
	if mode == arrayExpr {
		c.sizeEvaluators = append(c.sizeEvaluators, expr)
		c.hasEvalArrays = true
	}
	if name != "" {
		c.pushNamed(sc, name)
	}
	ptrSlot := len(c.code)
	c.code = append(c.code, make([]byte, bytecode.PtrWidth)...)
	return ptrSlot
}

func (c *compiler) emitStructEnd(bodyStart int) {
	c.code = append(c.code, byte(bytecode.StructEnd))
	ptr := make([]byte, bytecode.PtrWidth)
	bytecode.PutFixedPointer(ptr, uint64(bodyStart))
	c.code = append(c.code, ptr...)
}

func (c *compiler) pushNamed(sc *scope, name string) {
	path := name
	if sc.path != "" {
		path = sc.path + "." + name
	}
	c.namedFields = append(c.namedFields, field.Info{Path: path, Name: name, Depth: sc.depth + 1})
}
