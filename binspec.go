// Package binspec compiles a bytecode script (spec.md §6) and interprets it
// against a byte source, producing a field.Field tree. Prepare compiles a
// script once; the resulting Parser can then Parse any number of byte
// sources against it.
package binspec

import (
	"io"

	"github.com/binspec/binspec/bitstream"
	"github.com/binspec/binspec/compiler"
	"github.com/binspec/binspec/field"
	"github.com/binspec/binspec/interp"
	"github.com/binspec/binspec/lexer"
	"github.com/binspec/binspec/token"
)

// BitOrder selects which end of each source byte is consumed first.
type BitOrder = bitstream.BitOrder

const (
	MSBFirst = bitstream.MSBFirst
	LSBFirst = bitstream.LSBFirst
)

// Flags are the bit flags recognized by Parser.Parse.
type Flags = interp.Flags

// SkipRemainingFieldsIfEOF converts a boundary-aligned end of stream into a
// clean, truncated field tree instead of a ParsingError.
const SkipRemainingFieldsIfEOF = interp.SkipRemainingFieldsIfEOF

// CustomFieldTypeProcessor handles a field whose type isn't one of the
// script's built-in primitives.
type CustomFieldTypeProcessor = interp.CustomFieldTypeProcessor

// VarFieldProcessor handles a field whose shape depends on parsing logic
// the core doesn't know.
type VarFieldProcessor = interp.VarFieldProcessor

// ExternalValueProvider supplies a value for a name the NamedNumericFieldMap
// could not resolve.
type ExternalValueProvider = interp.ExternalValueProvider

// Parser holds one compiled script, ready to run against any number of byte
// sources.
type Parser struct {
	block    *compiler.CompiledBlock
	bitOrder BitOrder
	lastCtr  int64
}

// Prepare compiles script text under the given bit order and returns a
// reusable Parser. Errors found by the compiler wrap errs.ErrCompile; a
// character the lexer cannot scan and a malformed numeric literal are
// reported as plain errors that do not.
func Prepare(script string, bitOrder BitOrder) (*Parser, error) {
	return PrepareTokens(lexer.New(script), bitOrder)
}

// PrepareTokens compiles a pre-tokenized script. Most callers want Prepare;
// this entry point exists for a caller supplying its own token.Stream
// implementation (spec.md §1's tokenizer-as-external-collaborator).
func PrepareTokens(ts token.Stream, bitOrder BitOrder) (*Parser, error) {
	block, err := compiler.Compile(ts)
	if err != nil {
		return nil, err
	}
	return &Parser{block: block, bitOrder: bitOrder}, nil
}

// Parse interprets src against the compiled script. custom and varProc may
// be nil if the script never uses CUSTOMTYPE/VAR fields; external may be nil
// if the script never references a name outside the field tree.
func (p *Parser) Parse(src io.Reader, custom CustomFieldTypeProcessor, varProc VarFieldProcessor, external ExternalValueProvider, flags Flags) (*field.Field, error) {
	reader := bitstream.New(src, p.bitOrder)
	ip := interp.New(p.block, reader, p.bitOrder, flags, custom, varProc, external)
	root, err := ip.Run()
	p.lastCtr = reader.Counter()
	if err != nil {
		return nil, err
	}
	return root, nil
}

// FinalStreamByteCounter returns the byte counter's value as of the most
// recent Parse call, honoring any reset$$ directives the script executed.
func (p *Parser) FinalStreamByteCounter() int64 {
	return p.lastCtr
}
