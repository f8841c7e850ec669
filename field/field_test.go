package field

import "testing"

func TestArrayAtSynthesizesElement(t *testing.T) {
	f := NewArray(Info{Name: "xs"}, Int, []int64{10, 20, 30})
	elem, ok := f.At(1)
	if !ok {
		t.Fatalf("At(1) not found")
	}
	if elem.Kind != Int {
		t.Fatalf("elem.Kind = %v, want Int", elem.Kind)
	}
	if v, ok := elem.Int64(); !ok || v != 20 {
		t.Fatalf("elem value = %d, %v, want 20, true", v, ok)
	}
	if _, ok := f.At(3); ok {
		t.Fatalf("At(3) should be out of range")
	}
}

func TestArrayStructAtReturnsItemDirectly(t *testing.T) {
	item0 := NewStruct(Info{Name: "Point"}, []*Field{NewAtomic(Info{Name: "x"}, Int, 1)})
	item1 := NewStruct(Info{Name: "Point"}, []*Field{NewAtomic(Info{Name: "x"}, Int, 2)})
	arr := NewArrayStruct(Info{Name: "Points"}, []*Field{item0, item1})
	if arr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", arr.Len())
	}
	got, ok := arr.At(1)
	if !ok || got != item1 {
		t.Fatalf("At(1) did not return item1 directly")
	}
}

func TestByPathWalksNestedStructs(t *testing.T) {
	width := NewAtomic(Info{Name: "Width"}, Int, 640)
	header := NewStruct(Info{Name: "Header"}, []*Field{width})
	root := NewStruct(Info{Depth: -1}, []*Field{header})

	got, ok := root.ByPath("Header.Width")
	if !ok || got != width {
		t.Fatalf("ByPath(Header.Width) = %v, %v, want the Width field", got, ok)
	}
	if _, ok := root.ByPath("Header.Missing"); ok {
		t.Fatalf("ByPath(Header.Missing) should not resolve")
	}
}

func TestEqualComparesStructurally(t *testing.T) {
	a := NewStruct(Info{Name: "S"}, []*Field{NewAtomic(Info{Name: "a"}, Byte, 1)})
	b := NewStruct(Info{Name: "S"}, []*Field{NewAtomic(Info{Name: "a"}, Byte, 1)})
	c := NewStruct(Info{Name: "S"}, []*Field{NewAtomic(Info{Name: "a"}, Byte, 2)})
	if !Equal(a, b) {
		t.Fatalf("expected a == b")
	}
	if Equal(a, c) {
		t.Fatalf("expected a != c")
	}
}

func TestNumericExcludesVarAndCustom(t *testing.T) {
	if Var.Numeric() {
		t.Fatalf("Var should not be numeric")
	}
	if Custom.Numeric() {
		t.Fatalf("Custom should not be numeric")
	}
	if !Int.Numeric() {
		t.Fatalf("Int should be numeric")
	}
}
