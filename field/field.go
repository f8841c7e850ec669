// Package field defines the closed tagged-variant value tree produced by
// the interpreter: atomic numeric fields, arrays of atomics, structs, and
// arrays of structs, each carrying the name metadata the script gave it.
package field

import "strings"

// Kind tags which variant a Field holds.
type Kind int

const (
	Bit Kind = iota
	Bool
	Byte
	UByte
	Short
	UShort
	Int
	Long
	Var
	Custom
	Array
	Struct
	ArrayStruct
)

// String names a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case Bit:
		return "bit"
	case Bool:
		return "bool"
	case Byte:
		return "byte"
	case UByte:
		return "ubyte"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case Long:
		return "long"
	case Var:
		return "var"
	case Custom:
		return "custom"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case ArrayStruct:
		return "array-struct"
	default:
		return "unknown"
	}
}

// Numeric reports whether k is one of the plain atomic integer kinds (the
// ones eligible for the named numeric field map). Var and Custom are
// excluded: their Go-side representation is opaque to the core.
func (k Kind) Numeric() bool {
	switch k {
	case Bit, Bool, Byte, UByte, Short, UShort, Int, Long:
		return true
	default:
		return false
	}
}

// Info is the name metadata every Field carries. Depth -1 marks the
// synthetic root struct; an unnamed field carries an Info with an empty
// Path and Name.
type Info struct {
	Path  string
	Name  string
	Depth int
}

// Named reports whether the field was given a name in the script.
func (i Info) Named() bool {
	return i.Name != ""
}

// Field is the single tagged-variant type for every value the interpreter
// produces. Only the fields relevant to Kind are meaningful; the rest are
// left at their zero value.
type Field struct {
	Info Info
	Kind Kind

	// Num holds the value of an atomic numeric field (Bit/Bool/Byte/UByte/
	// Short/UShort/Int/Long). Bool is stored as 0 or 1.
	Num int64

	// Elem is the element Kind when Kind == Array.
	Elem Kind
	// Nums holds the element values when Kind == Array.
	Nums []int64

	// Children holds the ordered member fields when Kind == Struct.
	Children []*Field

	// Items holds the ordered elements when Kind == ArrayStruct; every
	// element has Kind == Struct.
	Items []*Field

	// Raw carries the value returned by a CustomFieldTypeProcessor or
	// VarFieldProcessor when Kind == Custom or Kind == Var and the
	// processor's value isn't representable as Num.
	Raw any
}

// NewAtomic builds a Field for one of the plain numeric/boolean kinds.
func NewAtomic(info Info, kind Kind, value int64) *Field {
	return &Field{Info: info, Kind: kind, Num: value}
}

// NewArray builds a Field for an array of atomic elements.
func NewArray(info Info, elem Kind, values []int64) *Field {
	return &Field{Info: info, Kind: Array, Elem: elem, Nums: values}
}

// NewStruct builds a Field for a struct with the given ordered children.
func NewStruct(info Info, children []*Field) *Field {
	return &Field{Info: info, Kind: Struct, Children: children}
}

// NewArrayStruct builds a Field for a repeated struct; every item must have
// Kind == Struct.
func NewArrayStruct(info Info, items []*Field) *Field {
	return &Field{Info: info, Kind: ArrayStruct, Items: items}
}

// Int64 returns the numeric value of an atomic field and true, or (0,
// false) if the field is not one of the numeric kinds.
func (f *Field) Int64() (int64, bool) {
	if f == nil || !f.Kind.Numeric() {
		return 0, false
	}
	return f.Num, true
}

// Len reports the element count of an Array or ArrayStruct field, or -1 for
// any other kind.
func (f *Field) Len() int {
	if f == nil {
		return -1
	}
	switch f.Kind {
	case Array:
		return len(f.Nums)
	case ArrayStruct:
		return len(f.Items)
	default:
		return -1
	}
}

// At returns the i'th element of an Array or ArrayStruct field.
//
// For Array it synthesizes a Field carrying Nums[i]; for ArrayStruct it
// returns Items[i] directly.
func (f *Field) At(i int) (*Field, bool) {
	if f == nil || i < 0 {
		return nil, false
	}
	switch f.Kind {
	case Array:
		if i >= len(f.Nums) {
			return nil, false
		}
		return &Field{Info: f.Info, Kind: f.Elem, Num: f.Nums[i]}, true
	case ArrayStruct:
		if i >= len(f.Items) {
			return nil, false
		}
		return f.Items[i], true
	default:
		return nil, false
	}
}

// Child looks up a direct member of a Struct field by its local name.
func (f *Field) Child(name string) (*Field, bool) {
	if f == nil || f.Kind != Struct {
		return nil, false
	}
	for _, c := range f.Children {
		if c.Info.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ByPath resolves a dotted path ("Header.Width") from f, which must be a
// Struct field, walking one member per path segment.
func (f *Field) ByPath(path string) (*Field, bool) {
	cur := f
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		next, ok := cur.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Equal reports whether f and other are structurally equal: same Kind,
// name metadata, and payload, recursively for Struct/ArrayStruct.
func Equal(f, other *Field) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Info != other.Info || f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case Array:
		if f.Elem != other.Elem || len(f.Nums) != len(other.Nums) {
			return false
		}
		for i := range f.Nums {
			if f.Nums[i] != other.Nums[i] {
				return false
			}
		}
		return true
	case Struct:
		if len(f.Children) != len(other.Children) {
			return false
		}
		for i := range f.Children {
			if !Equal(f.Children[i], other.Children[i]) {
				return false
			}
		}
		return true
	case ArrayStruct:
		if len(f.Items) != len(other.Items) {
			return false
		}
		for i := range f.Items {
			if !Equal(f.Items[i], other.Items[i]) {
				return false
			}
		}
		return true
	default:
		return f.Num == other.Num
	}
}
