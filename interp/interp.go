// Package interp implements the bytecode interpreter of spec.md §4.4: a
// recursive-descent walk over a CompiledBlock's instruction stream, driving
// a bitstream.Reader and building the field.Field tree, with four
// synchronized cursors (pc, name_idx, eval_idx, and recursion depth) rather
// than heap-allocated iterators (spec.md §9).
package interp

import (
	"errors"
	"fmt"

	"github.com/binspec/binspec/bitstream"
	"github.com/binspec/binspec/bytecode"
	"github.com/binspec/binspec/compiler"
	"github.com/binspec/binspec/errs"
	"github.com/binspec/binspec/eval"
	"github.com/binspec/binspec/field"
)

// state holds the three explicit cursors that advance in lock-step as the
// interpreter walks one CompiledBlock. Passing *state down the recursion
// (rather than returning updated copies) is what lets a counted struct
// repeat reset name_idx/eval_idx between iterations without rebuilding an
// iterator (spec.md §9).
type state struct {
	pc      int
	nameIdx int
	evalIdx int
}

// Interpreter runs one CompiledBlock against one byte source. It is not
// safe for concurrent use; each parse owns its own Interpreter, Reader, and
// NamedNumericFieldMap (spec.md §5), even though the CompiledBlock itself
// may be shared.
type Interpreter struct {
	block    *compiler.CompiledBlock
	reader   *bitstream.Reader
	bitOrder bitstream.BitOrder
	flags    Flags
	custom   CustomFieldTypeProcessor
	varProc  VarFieldProcessor
	external ExternalValueProvider
	fields   *fieldMap
}

// New builds an Interpreter. custom, varProc, and external may be nil; a
// script that never uses VAR/CUSTOMTYPE/external-provider lookups never
// calls them.
func New(block *compiler.CompiledBlock, reader *bitstream.Reader, bitOrder bitstream.BitOrder, flags Flags, custom CustomFieldTypeProcessor, varProc VarFieldProcessor, external ExternalValueProvider) *Interpreter {
	return &Interpreter{
		block:    block,
		reader:   reader,
		bitOrder: bitOrder,
		flags:    flags,
		custom:   custom,
		varProc:  varProc,
		external: external,
		fields:   newFieldMap(),
	}
}

// Run interprets the entire instruction stream and returns the synthetic
// root Struct field (depth -1, per spec.md §3's NamedFieldInfo note).
func (ip *Interpreter) Run() (*field.Field, error) {
	st := &state{}
	children, err := ip.runBody(st, "", -1, false, true)
	if err != nil {
		return nil, err
	}
	return field.NewStruct(field.Info{Depth: -1}, children), nil
}

// runBody interprets instructions until it reaches a matching STRUCT_END
// (consuming its trailing back-pointer) or, at the root, the end of the
// code stream. skip propagates the skip_structure_fields mode of spec.md
// §4.4: walk the body to advance cursors, but read nothing and emit no
// fields.
func (ip *Interpreter) runBody(st *state, scopePath string, depth int, skip bool, isRoot bool) ([]*field.Field, error) {
	var fields []*field.Field
	code := ip.block.Code
	for {
		if st.pc >= len(code) {
			if isRoot {
				return fields, nil
			}
			return nil, errs.Compile("unexpected end of instruction stream inside struct body")
		}
		if bytecode.TypeCode(code[st.pc]&bytecode.TypeCodeMask) == bytecode.StructEnd {
			if isRoot {
				return nil, errs.Compile("unexpected STRUCT_END at root")
			}
			st.pc += 1 + bytecode.PtrWidth
			return fields, nil
		}
		// EOF policy: a boundary-aligned exhaustion (nothing consumed yet
		// for the next instruction) stops cleanly under the flag; an EOF
		// discovered mid-instruction still propagates as a real error even
		// with the flag set, since it isn't at a boundary.
		if !skip && ip.flags&SkipRemainingFieldsIfEOF != 0 && !ip.reader.HasAvailableData() {
			return fields, nil
		}
		f, err := ip.step(st, scopePath, depth, skip)
		if err != nil {
			return nil, err
		}
		if f != nil {
			fields = append(fields, f)
		}
	}
}

// step dispatches exactly one instruction, following the six-step state
// machine of spec.md §4.4.
func (ip *Interpreter) step(st *state, scopePath string, depth int, skip bool) (*field.Field, error) {
	code := ip.block.Code

	opcodeByte := code[st.pc]
	st.pc++
	typeCode := bytecode.TypeCode(opcodeByte & bytecode.TypeCodeMask)
	named := opcodeByte&bytecode.FlagNamed != 0
	arrayFlag := opcodeByte&bytecode.FlagArray != 0
	littleEndian := opcodeByte&bytecode.FlagLittleEndian != 0
	wide := opcodeByte&bytecode.FlagWide != 0

	var ext byte
	if wide {
		ext = code[st.pc]
		st.pc++
	}
	extraAsExpr := ext&bytecode.ExtFlagExtraAsExpression != 0
	exprOrWhole := ext&bytecode.ExtFlagExpressionOrWholeStream != 0

	var info field.Info
	if named {
		info = ip.block.NamedFields[st.nameIdx]
		st.nameIdx++
	}

	byteOrder := bitstream.BigEndian
	if littleEndian {
		byteOrder = bitstream.LittleEndian
	}

	// Packed literals appear in the code stream in the fixed layout order
	// of spec.md §4.2 regardless of dispatch order: array-length literal,
	// extra literal, custom-type index.
	var arrayLitVal int64
	if arrayFlag && !exprOrWhole {
		v, n := bytecode.Uvarint(code[st.pc:])
		st.pc += n
		arrayLitVal = int64(v)
	}
	typeHasExtra := typeCode == bytecode.Bit || typeCode == bytecode.Align || typeCode == bytecode.Skip || typeCode == bytecode.Var
	var extraLitVal int64
	if typeHasExtra && !extraAsExpr {
		v, n := bytecode.Uvarint(code[st.pc:])
		st.pc += n
		extraLitVal = int64(v)
	}
	customIdx := -1
	if typeCode == bytecode.CustomType {
		v, n := bytecode.Uvarint(code[st.pc:])
		st.pc += n
		customIdx = int(v)
	}

	// Step 4: resolve extra before array kind, matching the order
	// size_evaluators entries were pushed in (compiler.emit pushes the
	// extra expression first, the array-length expression second).
	// In skip mode expressions are stepped over, not evaluated: the fields
	// they name were never read.
	var extra int64
	if typeHasExtra {
		if extraAsExpr && skip {
			st.evalIdx++
		} else if extraAsExpr {
			v, err := ip.evalNext(st, scopePath)
			if err != nil {
				return nil, err
			}
			extra = int64(v)
		} else {
			extra = extraLitVal
		}
		if !skip && typeCode == bytecode.Bit && (extra < 1 || extra > 8) {
			return nil, ip.wrapErr(info, fmt.Errorf("bit width %d outside 1..8", extra))
		}
	}

	// Step 5: array kind.
	var arrayLen int
	wholeStream := false
	switch {
	case !arrayFlag && !exprOrWhole:
		arrayLen = -1
	case arrayFlag && !exprOrWhole:
		arrayLen = int(arrayLitVal)
	case !arrayFlag && exprOrWhole:
		wholeStream = true
	case skip: // arrayFlag && exprOrWhole, stepped over in skip mode
		st.evalIdx++
	default: // arrayFlag && exprOrWhole
		v, err := ip.evalNext(st, scopePath)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, errs.NegativeArrayLength(info.Path, int64(v))
		}
		arrayLen = int(v)
	}

	return ip.dispatch(st, typeCode, info, byteOrder, extra, arrayLen, wholeStream, customIdx, scopePath, depth, skip)
}

func (ip *Interpreter) evalNext(st *state, scopePath string) (int32, error) {
	e := ip.block.SizeEvaluators[st.evalIdx]
	st.evalIdx++
	return eval.Eval(e, scoped{scopePath, ip.fields}, ip.external, ip.reader)
}

func (ip *Interpreter) wrapErr(info field.Info, err error) error {
	if err == nil {
		return nil
	}
	if info.Named() {
		return errs.Parsing(info.Path, err)
	}
	return err
}

func (ip *Interpreter) dispatch(st *state, typeCode bytecode.TypeCode, info field.Info, byteOrder bitstream.ByteOrder, extra int64, arrayLen int, wholeStream bool, customIdx int, scopePath string, depth int, skip bool) (*field.Field, error) {
	switch typeCode {
	case bytecode.ResetCounter:
		if !skip {
			ip.reader.ResetCounter()
		}
		return nil, nil
	case bytecode.Align:
		if !skip {
			if err := ip.reader.Align(int(extra)); err != nil {
				return nil, ip.wrapErr(info, err)
			}
		}
		return nil, nil
	case bytecode.Skip:
		if !skip {
			if _, err := ip.reader.Skip(extra); err != nil {
				return nil, ip.wrapErr(info, err)
			}
		}
		return nil, nil
	case bytecode.Bit:
		return ip.atomicField(info, field.Bit, arrayLen, wholeStream, skip,
			func() (int64, error) { v, err := ip.reader.ReadBitField(uint8(extra)); return int64(v), err },
			func(count int) ([]int64, error) { return ip.reader.ReadBitArray(uint8(extra), count) })
	case bytecode.Bool:
		readOne := func() (int64, error) {
			v, err := ip.reader.ReadBoolean()
			if err != nil {
				return 0, err
			}
			if v {
				return 1, nil
			}
			return 0, nil
		}
		return ip.atomicField(info, field.Bool, arrayLen, wholeStream, skip, readOne,
			func(count int) ([]int64, error) { return synthesizeArray(ip.reader.HasAvailableData, readOne, count) })
	case bytecode.Byte:
		return ip.atomicField(info, field.Byte, arrayLen, wholeStream, skip,
			func() (int64, error) { v, err := ip.reader.ReadByte(); return int64(v), err },
			func(count int) ([]int64, error) { return ip.reader.ReadByteArray(count) })
	case bytecode.UByte:
		return ip.atomicField(info, field.UByte, arrayLen, wholeStream, skip,
			func() (int64, error) { v, err := ip.reader.ReadUByte(); return int64(v), err },
			func(count int) ([]int64, error) { return ip.reader.ReadUByteArray(count) })
	case bytecode.Short:
		return ip.atomicField(info, field.Short, arrayLen, wholeStream, skip,
			func() (int64, error) { v, err := ip.reader.ReadShort(byteOrder); return int64(v), err },
			func(count int) ([]int64, error) { return ip.reader.ReadShortArray(count, byteOrder) })
	case bytecode.UShort:
		return ip.atomicField(info, field.UShort, arrayLen, wholeStream, skip,
			func() (int64, error) { v, err := ip.reader.ReadUShort(byteOrder); return int64(v), err },
			func(count int) ([]int64, error) { return ip.reader.ReadUShortArray(count, byteOrder) })
	case bytecode.Int:
		return ip.atomicField(info, field.Int, arrayLen, wholeStream, skip,
			func() (int64, error) { return ip.reader.ReadInt(byteOrder) },
			func(count int) ([]int64, error) { return ip.reader.ReadIntArray(count, byteOrder) })
	case bytecode.Long:
		return ip.atomicField(info, field.Long, arrayLen, wholeStream, skip,
			func() (int64, error) { return ip.reader.ReadLong(byteOrder) },
			func(count int) ([]int64, error) { return ip.reader.ReadLongArray(count, byteOrder) })
	case bytecode.Var:
		return ip.varField(info, extra, byteOrder, arrayLen, wholeStream, skip, scopePath)
	case bytecode.CustomType:
		return ip.customField(info, customIdx, extra, arrayLen, wholeStream, skip)
	case bytecode.StructStart:
		return ip.structField(st, info, arrayLen, wholeStream, skip, scopePath, depth)
	case bytecode.StructEnd:
		return nil, errs.Compile("unexpected STRUCT_END reached via instruction dispatch")
	default:
		return nil, errs.Compile("unknown instruction type code")
	}
}

// synthesizeArray builds an array from repeated single-value reads, for
// atomic kinds (Bool) the BitStream contract doesn't give a dedicated
// *_array method for.
func synthesizeArray(hasMore func() bool, readOne func() (int64, error), count int) ([]int64, error) {
	if count >= 0 {
		out := make([]int64, count)
		for i := range out {
			v, err := readOne()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	var out []int64
	for hasMore() {
		v, err := readOne()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// atomicField reads a single value, a counted array, or a whole-stream
// array uniformly for any plain atomic/boolean kind, and records a named
// scalar result into the NamedNumericFieldMap (spec.md §3's "updated before
// subsequent expression evaluations" ordering — this happens before the
// caller moves on to the next instruction).
func (ip *Interpreter) atomicField(info field.Info, kind field.Kind, arrayLen int, wholeStream bool, skip bool, readOne func() (int64, error), readArray func(count int) ([]int64, error)) (*field.Field, error) {
	if skip {
		return nil, nil
	}
	if !wholeStream && arrayLen < 0 {
		v, err := readOne()
		if err != nil {
			return nil, ip.wrapErr(info, err)
		}
		if info.Named() {
			ip.fields.set(info.Path, v)
		}
		return field.NewAtomic(info, kind, v), nil
	}
	count := arrayLen
	if wholeStream {
		count = -1
	}
	vals, err := readArray(count)
	if err != nil {
		return nil, ip.wrapErr(info, err)
	}
	return field.NewArray(info, kind, vals), nil
}

func (ip *Interpreter) varField(info field.Info, extra int64, byteOrder bitstream.ByteOrder, arrayLen int, wholeStream bool, skip bool, scopePath string) (*field.Field, error) {
	if skip {
		return nil, nil
	}
	if ip.varProc == nil {
		return nil, ip.wrapErr(info, errs.Compile("var field encountered but no VarFieldProcessor was supplied"))
	}
	fields := scoped{scopePath, ip.fields}
	if !wholeStream && arrayLen < 0 {
		f, err := ip.varProc.ReadVar(ip.reader, info.Name, extra, byteOrder, fields)
		if err != nil {
			return nil, ip.wrapErr(info, err)
		}
		if f == nil {
			return nil, ip.wrapErr(info, errors.New("var field processor returned a nil field"))
		}
		if f.Kind == field.Array || f.Kind == field.ArrayStruct {
			return nil, ip.wrapErr(info, errors.New("var field processor returned an array for a scalar site"))
		}
		if f.Info.Name != "" && f.Info.Name != info.Name {
			return nil, ip.wrapErr(info, fmt.Errorf("var field processor returned name %q, want %q", f.Info.Name, info.Name))
		}
		f.Info = info
		return f, nil
	}
	count := arrayLen
	if wholeStream {
		count = -1
	}
	f, err := ip.varProc.ReadVarArray(ip.reader, count, info.Name, extra, byteOrder, fields)
	if err != nil {
		return nil, ip.wrapErr(info, err)
	}
	if f == nil {
		return nil, ip.wrapErr(info, errors.New("var field processor returned a nil field"))
	}
	f.Info = info
	return f, nil
}

func (ip *Interpreter) customField(info field.Info, customIdx int, extra int64, arrayLen int, wholeStream bool, skip bool) (*field.Field, error) {
	if skip {
		return nil, nil
	}
	if ip.custom == nil {
		return nil, ip.wrapErr(info, errs.Compile("custom-typed field encountered but no CustomFieldTypeProcessor was supplied"))
	}
	descriptor := ip.block.CustomTypeDescriptors[customIdx]
	f, err := ip.custom.Read(ip.reader, ip.bitOrder, ip.flags, descriptor, info.Name, extra, wholeStream, arrayLen)
	if err != nil {
		return nil, ip.wrapErr(info, err)
	}
	if f == nil {
		return nil, ip.wrapErr(info, errors.New("custom field type processor returned a nil field"))
	}
	if !wholeStream && arrayLen < 0 && (f.Kind == field.Array || f.Kind == field.ArrayStruct) {
		return nil, ip.wrapErr(info, errors.New("custom field type processor returned an array for a scalar site"))
	}
	if f.Info.Name != "" && f.Info.Name != info.Name {
		return nil, ip.wrapErr(info, fmt.Errorf("custom field type processor returned name %q, want %q", f.Info.Name, info.Name))
	}
	f.Info = info
	return f, nil
}

// structField handles STRUCT_START: a single nested struct, a literal- or
// expression-counted struct array, or a whole-stream struct array. The
// back-pointer lets every repeat reposition pc to the body's first
// instruction instead of recompiling or re-walking from the start
// (spec.md §3, §9).
func (ip *Interpreter) structField(st *state, info field.Info, arrayLen int, wholeStream bool, skip bool, scopePath string, depth int) (*field.Field, error) {
	code := ip.block.Code
	bodyStart := int(bytecode.FixedPointer(code[st.pc : st.pc+bytecode.PtrWidth]))
	st.pc += bytecode.PtrWidth

	childPath := info.Path
	if childPath == "" {
		childPath = scopePath
	}

	if skip {
		if _, err := ip.runBody(st, childPath, depth+1, true, false); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !wholeStream && arrayLen < 0 {
		children, err := ip.runBody(st, childPath, depth+1, false, false)
		if err != nil {
			return nil, err
		}
		return field.NewStruct(info, children), nil
	}

	savedNameIdx, savedEvalIdx := st.nameIdx, st.evalIdx

	if !wholeStream && arrayLen == 0 {
		st.pc = bodyStart
		if _, err := ip.runBody(st, childPath, depth+1, true, false); err != nil {
			return nil, err
		}
		return field.NewArrayStruct(info, nil), nil
	}

	var items []*field.Field
	iterate := func() (bool, error) {
		st.pc = bodyStart
		st.nameIdx, st.evalIdx = savedNameIdx, savedEvalIdx
		children, err := ip.runBody(st, childPath, depth+1, false, false)
		if err != nil {
			return false, err
		}
		items = append(items, field.NewStruct(info, children))
		return true, nil
	}

	if wholeStream {
		if !ip.reader.HasAvailableData() {
			st.pc = bodyStart
			if _, err := ip.runBody(st, childPath, depth+1, true, false); err != nil {
				return nil, err
			}
			return field.NewArrayStruct(info, nil), nil
		}
		for ip.reader.HasAvailableData() {
			before := ip.reader.BitPosition()
			if _, err := iterate(); err != nil {
				return nil, err
			}
			if ip.reader.BitPosition() == before {
				return nil, ip.wrapErr(info, errors.New("whole-stream struct array body consumed no input; would loop forever"))
			}
		}
	} else {
		for i := 0; i < arrayLen; i++ {
			if _, err := iterate(); err != nil {
				return nil, err
			}
		}
	}
	return field.NewArrayStruct(info, items), nil
}
