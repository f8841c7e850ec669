// Package bitstream provides the bit-accurate read cursor the interpreter
// drives. It generalizes the teacher codec's (lib/bitbuffer.Codec)
// lazy-partial-byte state machine — itself write-and-read, MSB-first only,
// and backed by a plain []byte — into a read-only cursor over any
// io.Reader, with the bit order and the multi-byte assembly order both
// configurable per spec.md §4.1.
package bitstream

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/binspec/binspec/errs"
)

// BitOrder selects which end of each source byte is consumed first.
type BitOrder int

const (
	// MSBFirst consumes the most significant bit of each byte first. This
	// is the teacher codec's only supported order.
	MSBFirst BitOrder = iota
	// LSBFirst consumes the least significant bit of each byte first.
	LSBFirst
)

// ByteOrder selects how multi-byte reads assemble their constituent bytes.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Reader is a bit-granular cursor over a byte source. It is not safe for
// concurrent use; each parse owns exactly one Reader (spec.md §5).
type Reader struct {
	src      *bufio.Reader
	bitOrder BitOrder

	cur   byte  // the most recently pulled source byte
	nbits uint8 // bits of cur not yet consumed, 0..8

	counter int64 // bytes fully consumed so far
}

// New wraps src with a bit-cursor using the given bit order.
func New(src io.Reader, order BitOrder) *Reader {
	return &Reader{src: bufio.NewReader(src), bitOrder: order}
}

// ensure pulls a fresh byte from the source when the current one is fully
// consumed. Pulling a byte does not itself advance counter(); counter only
// advances once all of that byte's bits have actually been read out (see
// the bottom of ReadBitField), matching spec.md's "bytes fully consumed".
func (r *Reader) ensure() error {
	if r.nbits > 0 {
		return nil
	}
	b, err := r.src.ReadByte()
	if err != nil {
		if err == io.EOF {
			return errs.EndOfStream("no more data")
		}
		return errs.Transport(err)
	}
	r.cur = b
	r.nbits = 8
	return nil
}

// ReadBitField returns the next width bits (1..8) packed into the low bits
// of a byte, consuming them in the configured bit order.
func (r *Reader) ReadBitField(width uint8) (uint8, error) {
	if width < 1 || width > 8 {
		return 0, errs.Parsing("", errFieldWidth(width))
	}
	var result uint8
	remaining := width
	for remaining > 0 {
		if err := r.ensure(); err != nil {
			return 0, err
		}
		take := remaining
		if take > r.nbits {
			take = r.nbits
		}
		var bits uint8
		if r.bitOrder == MSBFirst {
			shift := r.nbits - take
			bits = (r.cur >> shift) & mask(take)
		} else {
			bits = r.cur & mask(take)
			r.cur >>= take
		}
		result = (result << take) | bits
		r.nbits -= take
		remaining -= take
		if r.nbits == 0 {
			r.counter++
		}
	}
	return result, nil
}

func mask(n uint8) uint8 {
	if n >= 8 {
		return 0xFF
	}
	return (1 << n) - 1
}

// ReadByte reads 8 bits as a signed value in -128..127 range, matching the
// script's plain "byte" type.
func (r *Reader) ReadByte() (int32, error) {
	b, err := r.ReadBitField(8)
	if err != nil {
		return 0, err
	}
	return int32(int8(b)), nil
}

// ReadUByte reads 8 bits as an unsigned value.
func (r *Reader) ReadUByte() (int32, error) {
	b, err := r.ReadBitField(8)
	if err != nil {
		return 0, err
	}
	return int32(b), nil
}

// ReadBoolean reads 8 bits; the result is true iff any bit is set.
func (r *Reader) ReadBoolean() (bool, error) {
	b, err := r.ReadBitField(8)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// readBytes reads n whole bytes via ReadBitField(8), used by the multi-byte
// readers below so bit order is honored even for byte-sized chunks.
func (r *Reader) readBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := r.ReadBitField(8)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func assemble(buf []byte, order ByteOrder) uint64 {
	var tmp [8]byte
	if order == LittleEndian {
		for i, b := range buf {
			tmp[i] = b
		}
		return binary.LittleEndian.Uint64(tmp[:])
	}
	copy(tmp[8-len(buf):], buf)
	return binary.BigEndian.Uint64(tmp[:])
}

// ReadShort reads a signed 16-bit value.
func (r *Reader) ReadShort(order ByteOrder) (int32, error) {
	buf, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return int32(int16(assemble(buf, order))), nil
}

// ReadUShort reads an unsigned 16-bit value.
func (r *Reader) ReadUShort(order ByteOrder) (int32, error) {
	buf, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return int32(uint16(assemble(buf, order))), nil
}

// ReadInt reads a signed 32-bit value.
func (r *Reader) ReadInt(order ByteOrder) (int64, error) {
	buf, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int64(int32(assemble(buf, order))), nil
}

// ReadLong reads a signed 64-bit value.
func (r *Reader) ReadLong(order ByteOrder) (int64, error) {
	buf, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(assemble(buf, order)), nil
}

// ReadBitArray reads count elements of width bits each, or until the
// stream is exhausted when count == -1, returning each element's value.
func (r *Reader) ReadBitArray(width uint8, count int) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		v, err := r.ReadBitField(width)
		return int64(v), err
	})
}

// ReadByteArray reads count signed bytes, or until exhaustion when count ==
// -1.
func (r *Reader) ReadByteArray(count int) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		v, err := r.ReadByte()
		return int64(v), err
	})
}

// ReadUByteArray reads count unsigned bytes, or until exhaustion when count
// == -1.
func (r *Reader) ReadUByteArray(count int) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		v, err := r.ReadUByte()
		return int64(v), err
	})
}

// ReadShortArray reads count signed shorts, or until exhaustion.
func (r *Reader) ReadShortArray(count int, order ByteOrder) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		v, err := r.ReadShort(order)
		return int64(v), err
	})
}

// ReadUShortArray reads count unsigned shorts, or until exhaustion.
func (r *Reader) ReadUShortArray(count int, order ByteOrder) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		v, err := r.ReadUShort(order)
		return int64(v), err
	})
}

// ReadIntArray reads count ints, or until exhaustion.
func (r *Reader) ReadIntArray(count int, order ByteOrder) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		return r.ReadInt(order)
	})
}

// ReadLongArray reads count longs, or until exhaustion.
func (r *Reader) ReadLongArray(count int, order ByteOrder) ([]int64, error) {
	return r.readArray(count, func() (int64, error) {
		return r.ReadLong(order)
	})
}

func (r *Reader) readArray(count int, read func() (int64, error)) ([]int64, error) {
	if count >= 0 {
		out := make([]int64, count)
		for i := range out {
			v, err := read()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	var out []int64
	for r.HasAvailableData() {
		v, err := read()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Align advances the byte cursor to the next multiple of n bytes,
// discarding any partial bit buffer first, per spec.md §4.1. n == 1 is a
// valid no-op on the byte position that still flushes the bit buffer.
func (r *Reader) Align(n int) error {
	if n <= 0 {
		return errs.Parsing("", errInvalidAlign(n))
	}
	if r.nbits > 0 {
		r.nbits = 0
		r.cur = 0
		r.counter++
	}
	rem := r.counter % int64(n)
	if rem == 0 {
		return nil
	}
	toSkip := int64(n) - rem
	skipped, err := r.Skip(toSkip)
	if err != nil {
		return err
	}
	if skipped != toSkip {
		return errs.EndOfStream("short align")
	}
	return nil
}

// Skip advances up to n bytes, returning the number actually skipped. It
// stops (without error) at end of stream, reporting how far it got, so
// callers under SKIP_REMAINING_FIELDS_IF_EOF can react.
func (r *Reader) Skip(n int64) (int64, error) {
	var skipped int64
	if r.nbits > 0 {
		r.nbits = 0
		r.cur = 0
		r.counter++
		skipped++
	}
	for skipped < n {
		if _, err := r.src.ReadByte(); err != nil {
			if err == io.EOF {
				return skipped, nil
			}
			return skipped, errs.Transport(err)
		}
		r.counter++
		skipped++
	}
	return skipped, nil
}

// HasAvailableData reports whether at least one more bit or byte can be
// read without blocking.
func (r *Reader) HasAvailableData() bool {
	if r.nbits > 0 {
		return true
	}
	_, err := r.src.Peek(1)
	return err == nil
}

// Counter returns the number of bytes fully consumed so far.
func (r *Reader) Counter() int64 {
	return r.counter
}

// BitPosition returns the total number of bits consumed so far, including
// a partially-consumed current byte. Used to detect a read that made no
// progress at all (e.g. a struct body of nothing but align/skip no-ops).
func (r *Reader) BitPosition() int64 {
	pos := r.counter * 8
	if r.nbits > 0 {
		pos += int64(8 - r.nbits)
	}
	return pos
}

// ResetCounter sets the counter to 0 and discards any partial bit buffer.
func (r *Reader) ResetCounter() {
	r.counter = 0
	r.nbits = 0
	r.cur = 0
}
