package interp

import (
	"github.com/binspec/binspec/bitstream"
	"github.com/binspec/binspec/compiler"
	"github.com/binspec/binspec/eval"
	"github.com/binspec/binspec/field"
)

// Flags are the bit flags passed to New (and to binspec's Parser.Parse),
// recognized per spec.md §6.
type Flags uint32

// SkipRemainingFieldsIfEOF converts a boundary-aligned end of stream into a
// clean, truncated field tree instead of a ParsingError.
const SkipRemainingFieldsIfEOF Flags = 1

// CustomFieldTypeProcessor handles a CUSTOMTYPE instruction: a field whose
// type was not one of the script's built-in primitives. The interpreter
// never interprets descriptor itself — it is opaque parameter data handed
// to whichever processor the caller supplied.
type CustomFieldTypeProcessor interface {
	Read(stream *bitstream.Reader, bitOrder bitstream.BitOrder, flags Flags, descriptor compiler.CustomTypeDescriptor, name string, extra int64, wholeStream bool, arrayLen int) (*field.Field, error)
}

// VarFieldProcessor handles a VAR instruction, for fields whose shape
// depends on parsing logic the core itself doesn't know (length-prefixed
// blobs, tag-length-value records, and the like).
type VarFieldProcessor interface {
	ReadVar(stream *bitstream.Reader, name string, extra int64, byteOrder bitstream.ByteOrder, fields eval.FieldValues) (*field.Field, error)
	ReadVarArray(stream *bitstream.Reader, arrayLen int, name string, extra int64, byteOrder bitstream.ByteOrder, fields eval.FieldValues) (*field.Field, error)
}

// ExternalValueProvider supplies a value for a name the NamedNumericFieldMap
// could not resolve. It is exactly eval.ExternalValues under a name that
// matches spec.md §6's vocabulary.
type ExternalValueProvider = eval.ExternalValues
