package bitstream

import (
	"bytes"
	"testing"
)

func TestReadBitFieldMSBFirst(t *testing.T) {
	// 0xA5 == 1010_0101
	r := New(bytes.NewReader([]byte{0xA5}), MSBFirst)
	test := func(width uint8, expected uint8, description string) {
		t.Run(description, func(t *testing.T) {
			v, err := r.ReadBitField(width)
			if err != nil {
				t.Fatalf("ReadBitField(%d) failed: %v", width, err)
			}
			if v != expected {
				t.Errorf("ReadBitField(%d) = %#x, want %#x", width, v, expected)
			}
		})
	}
	test(4, 0xA, "high nibble")
	test(4, 0x5, "low nibble")
	if r.Counter() != 1 {
		t.Errorf("counter = %d, want 1", r.Counter())
	}
}

func TestReadBitFieldLSBFirst(t *testing.T) {
	// 0xA5 == 1010_0101; LSB-first nibble reads should see 0x5 then 0xA.
	r := New(bytes.NewReader([]byte{0xA5}), LSBFirst)
	v, err := r.ReadBitField(4)
	if err != nil {
		t.Fatalf("ReadBitField failed: %v", err)
	}
	if v != 0x5 {
		t.Errorf("first nibble = %#x, want 0x5", v)
	}
	v, err = r.ReadBitField(4)
	if err != nil {
		t.Fatalf("ReadBitField failed: %v", err)
	}
	if v != 0xA {
		t.Errorf("second nibble = %#x, want 0xA", v)
	}
}

func TestReadIntByteOrder(t *testing.T) {
	r := New(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x2A}), MSBFirst)
	v, err := r.ReadInt(BigEndian)
	if err != nil {
		t.Fatalf("ReadInt failed: %v", err)
	}
	if v != 42 {
		t.Errorf("big-endian ReadInt = %d, want 42", v)
	}

	r2 := New(bytes.NewReader([]byte{0x2A, 0x00, 0x00, 0x00}), MSBFirst)
	v2, err := r2.ReadInt(LittleEndian)
	if err != nil {
		t.Fatalf("ReadInt failed: %v", err)
	}
	if v2 != 42 {
		t.Errorf("little-endian ReadInt = %d, want 42", v2)
	}
}

func TestAlignDiscardsPartialByte(t *testing.T) {
	r := New(bytes.NewReader([]byte{0xFF, 0x00, 0x00, 0x07}), MSBFirst)
	if _, err := r.ReadBitField(3); err != nil {
		t.Fatalf("ReadBitField failed: %v", err)
	}
	if err := r.Align(4); err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if r.Counter() != 4 {
		t.Errorf("counter after align = %d, want 4", r.Counter())
	}
	if r.HasAvailableData() {
		t.Fatalf("expected EOF after aligning past all 4 bytes")
	}
	_ = r
}

func TestAlignOneIsNoOpButFlushesBitBuffer(t *testing.T) {
	r := New(bytes.NewReader([]byte{0xFF, 0xAA}), MSBFirst)
	if _, err := r.ReadBitField(3); err != nil {
		t.Fatalf("ReadBitField failed: %v", err)
	}
	if err := r.Align(1); err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if r.Counter() != 1 {
		t.Errorf("counter after align(1) = %d, want 1", r.Counter())
	}
	v, err := r.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte failed: %v", err)
	}
	if v != -86 { // 0xAA as a signed byte
		t.Errorf("ReadByte after align(1) = %d, want %d", v, -86)
	}
}

func TestReadByteArrayWholeStream(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	r := New(bytes.NewReader(data), MSBFirst)
	arr, err := r.ReadByteArray(-1)
	if err != nil {
		t.Fatalf("ReadByteArray failed: %v", err)
	}
	if len(arr) != 1024 {
		t.Fatalf("len(arr) = %d, want 1024", len(arr))
	}
	if r.Counter() != 1024 {
		t.Errorf("counter = %d, want 1024", r.Counter())
	}
}

func TestReadBitArrayWholeStreamElementCount(t *testing.T) {
	data := make([]byte, 1024)
	r := New(bytes.NewReader(data), MSBFirst)
	bits, err := r.ReadBitArray(1, -1)
	if err != nil {
		t.Fatalf("ReadBitArray failed: %v", err)
	}
	if len(bits) != 8*1024 {
		t.Errorf("len(bits) = %d, want %d", len(bits), 8*1024)
	}
}

func TestSkipReturnsActualCount(t *testing.T) {
	r := New(bytes.NewReader([]byte{1, 2, 3}), MSBFirst)
	n, err := r.Skip(10)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Skip returned %d, want 3", n)
	}
}

func TestResetCounter(t *testing.T) {
	r := New(bytes.NewReader([]byte{1, 2, 3}), MSBFirst)
	if _, err := r.ReadByte(); err != nil {
		t.Fatalf("ReadByte failed: %v", err)
	}
	r.ResetCounter()
	if r.Counter() != 0 {
		t.Errorf("counter after reset = %d, want 0", r.Counter())
	}
}
