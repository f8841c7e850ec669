// Package compiler implements the script compiler of spec.md §4.2: it
// consumes a token.Stream and emits a CompiledBlock — a byte array of
// instructions plus the side tables the interpreter walks in lock-step.
package compiler

import (
	"github.com/binspec/binspec/eval"
	"github.com/binspec/binspec/field"
)

// CustomTypeDescriptor is the parameter container recorded for each
// occurrence of a user-defined field type in the script. The core only
// carries the type name through; interpreting it is the
// CustomFieldTypeProcessor's job.
type CustomTypeDescriptor struct {
	TypeName string
}

// CompiledBlock is the immutable product of compilation: instruction bytes
// plus the side tables the interpreter consumes in step with them
// (spec.md §3). A CompiledBlock may be shared by many concurrent parses.
type CompiledBlock struct {
	Code                  []byte
	NamedFields           []field.Info
	SizeEvaluators        []*eval.Expr
	CustomTypeDescriptors []CustomTypeDescriptor
	HasVarFields          bool
	HasEvaluatedArrays    bool
}
