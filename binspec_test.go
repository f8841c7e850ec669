package binspec_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/binspec/binspec"
)

func TestPNGLikeChunkedStream(t *testing.T) {
	script := `long header; chunk[_]{int length; int type; byte[length] data; int crc;}`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int64(-0x76AFB1B8F2F5E5F6)) // 0x89504E470D0A1A0A as signed int64

	type chunk struct {
		typ  string
		data []byte
	}
	chunks := []chunk{
		{"IHDR", make([]byte, 13)},
		{"gAMA", make([]byte, 4)},
		{"IEND", nil},
	}
	for _, c := range chunks {
		binary.Write(&buf, binary.BigEndian, int32(len(c.data)))
		buf.WriteString(c.typ)
		buf.Write(c.data)
		binary.Write(&buf, binary.BigEndian, int32(0))
	}

	root, err := parser.Parse(bytes.NewReader(buf.Bytes()), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	header, ok := root.Child("header")
	if !ok {
		t.Fatalf("missing header")
	}
	if uint64(header.Num) != 0x89504E470D0A1A0A {
		t.Fatalf("header = %#x, want 0x89504E470D0A1A0A", uint64(header.Num))
	}

	chunkArr, ok := root.Child("chunk")
	if !ok {
		t.Fatalf("missing chunk")
	}
	if chunkArr.Len() != len(chunks) {
		t.Fatalf("chunk count = %d, want %d", chunkArr.Len(), len(chunks))
	}
	for i, want := range chunks {
		item, _ := chunkArr.At(i)
		lengthF, _ := item.Child("length")
		dataF, _ := item.Child("data")
		if int(lengthF.Num) != len(want.data) {
			t.Fatalf("chunk[%d].length = %d, want %d", i, lengthF.Num, len(want.data))
		}
		if dataF.Len() != len(want.data) {
			t.Fatalf("chunk[%d].data len = %d, want %d", i, dataF.Len(), len(want.data))
		}
	}
	if parser.FinalStreamByteCounter() != int64(buf.Len()) {
		t.Fatalf("FinalStreamByteCounter = %d, want %d (full input consumed)", parser.FinalStreamByteCounter(), buf.Len())
	}
}

func TestWAVLikeLittleEndianWithAlign(t *testing.T) {
	script := `<int ChunkID; <int ChunkSize; <int Format; SubChunks[_]{<int SubChunkID; <int SubChunkSize; byte[SubChunkSize] data; align:2;}`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(0x46464952)) // "RIFF"
	binary.Write(&buf, binary.LittleEndian, int32(100))
	binary.Write(&buf, binary.LittleEndian, int32(0x45564157)) // "WAVE"

	writeSub := func(id string, payload []byte) {
		buf.WriteString(id)
		binary.Write(&buf, binary.LittleEndian, int32(len(payload)))
		buf.Write(payload)
		if len(payload)%2 != 0 {
			buf.WriteByte(0)
		}
	}
	writeSub("fmt ", []byte{1, 2, 3})
	writeSub("data", []byte{9, 9})

	root, err := parser.Parse(bytes.NewReader(buf.Bytes()), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	chunkID, _ := root.Child("ChunkID")
	format, _ := root.Child("Format")
	if uint32(chunkID.Num) != 0x46464952 {
		t.Fatalf("ChunkID = %#x, want RIFF", uint32(chunkID.Num))
	}
	if uint32(format.Num) != 0x45564157 {
		t.Fatalf("Format = %#x, want WAVE", uint32(format.Num))
	}
	subs, _ := root.Child("SubChunks")
	if subs.Len() != 2 {
		t.Fatalf("SubChunks count = %d, want 2", subs.Len())
	}
}

func TestSNALikeFixedFieldSnapshot(t *testing.T) {
	script := `<ushort regI; <ushort altHL; <ushort altDE; <ushort altBC; <ushort altAF; <ushort regHL; ` +
		`<ushort regSP; <ubyte im; <ubyte borderColor; byte[4] ramDump;`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	for _, v := range []uint16{0x003F, 0x2758, 0x369B, 0x1721, 0x0044, 0x2D2B, 0x7E62} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(0x01)
	buf.WriteByte(0x07)
	buf.Write([]byte{1, 2, 3, 4})

	root, err := parser.Parse(bytes.NewReader(buf.Bytes()), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	regI, _ := root.Child("regI")
	regSP, _ := root.Child("regSP")
	im, _ := root.Child("im")
	borderColor, _ := root.Child("borderColor")
	ram, _ := root.Child("ramDump")
	if regI.Num != 0x3F || regSP.Num != 0x7E62 {
		t.Fatalf("regI/regSP = %#x/%#x, want 0x3F/0x7E62", regI.Num, regSP.Num)
	}
	if im.Num != 1 || borderColor.Num != 7 {
		t.Fatalf("im/borderColor = %d/%d, want 1/7", im.Num, borderColor.Num)
	}
	if ram.Len() != 4 {
		t.Fatalf("ramDump len = %d, want 4", ram.Len())
	}
}

func TestTGALikeNestedHeaderWithBitPackedByteAndCrossFieldExpression(t *testing.T) {
	script := `Header{ ubyte IDLength; ubyte ColorMapType; ubyte Width; ubyte Height; ubyte PixelDepth; ` +
		`ubyte ColorMapItemLen; ImageDesc{ bit:4 PixelAttrNumber; bit:2 Pos; bit:2 Reserved; } } ` +
		`byte[Header.IDLength] ImageID; ` +
		`ColorMap[Header.ColorMapType * Header.ColorMapItemLen]{ byte ColorMapItem; } ` +
		`byte[_] ImageData;`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	buf.WriteByte(2)    // IDLength
	buf.WriteByte(1)    // ColorMapType
	buf.WriteByte(64)   // Width
	buf.WriteByte(48)   // Height
	buf.WriteByte(8)    // PixelDepth
	buf.WriteByte(3)    // ColorMapItemLen
	buf.WriteByte(0xB4) // ImageDesc: 1011 01 00 -> PixelAttrNumber=0xB=11, Pos=01, Reserved=00
	buf.Write([]byte{'h', 'i'})
	for i := 0; i < 3; i++ {
		buf.WriteByte(byte(0x10 + i))
	}
	buf.Write([]byte{1, 2, 3, 4, 5})

	root, err := parser.Parse(bytes.NewReader(buf.Bytes()), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	header, _ := root.Child("Header")
	width, _ := header.Child("Width")
	imageDesc, _ := header.Child("ImageDesc")
	pixelAttr, _ := imageDesc.Child("PixelAttrNumber")
	if width.Num != 64 {
		t.Fatalf("Width = %d, want 64", width.Num)
	}
	if pixelAttr.Num != 0xB {
		t.Fatalf("PixelAttrNumber = %#x, want 0xB", pixelAttr.Num)
	}
	colorMap, _ := root.Child("ColorMap")
	if colorMap.Len() != 3 {
		t.Fatalf("ColorMap len = %d, want 3", colorMap.Len())
	}
	imageData, _ := root.Child("ImageData")
	if imageData.Len() != 5 {
		t.Fatalf("ImageData len = %d, want 5", imageData.Len())
	}
}

func TestWholeStreamBitArrayElementCount(t *testing.T) {
	script := `bit:1[_] bitArray;`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	data := bytes.Repeat([]byte{0xAA}, 128)
	root, err := parser.Parse(bytes.NewReader(data), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bitArray, ok := root.Child("bitArray")
	if !ok {
		t.Fatalf("missing bitArray")
	}
	if bitArray.Len() != 8*len(data) {
		t.Fatalf("bitArray len = %d, want %d", bitArray.Len(), 8*len(data))
	}
}

func TestEmptyWholeStreamStructArrayNoError(t *testing.T) {
	script := `S[_]{ int a; }`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	root, err := parser.Parse(bytes.NewReader(nil), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, ok := root.Child("S")
	if !ok {
		t.Fatalf("missing S")
	}
	if s.Len() != 0 {
		t.Fatalf("S len = %d, want 0", s.Len())
	}
}

func TestCountedZeroStructArrayNoError(t *testing.T) {
	script := `S[0]{ int a; }`
	parser, err := binspec.Prepare(script, binspec.MSBFirst)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	data := []byte{1, 2, 3, 4, 5}
	root, err := parser.Parse(bytes.NewReader(data), nil, nil, nil, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, ok := root.Child("S")
	if !ok {
		t.Fatalf("missing S")
	}
	if s.Len() != 0 {
		t.Fatalf("S len = %d, want 0", s.Len())
	}
	if parser.FinalStreamByteCounter() != 0 {
		t.Fatalf("FinalStreamByteCounter = %d, want 0 (no bytes consumed)", parser.FinalStreamByteCounter())
	}
}
