// SPDX-License-Identifier: EPL-2.0

package wire

import (
	"encoding/binary"
	"math"

	"github.com/ik5/audrender/graph"
)

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }
func (e *encoder) f64(v float64) { e.u64(math.Float64bits(v)) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) frame(f graph.OptionalFrame) {
	e.boolean(f.Valid)
	if f.Valid {
		e.u64(f.Frame)
		return
	}
	e.u64(0)
}

func (e *encoder) floats(v []float32) {
	for _, f := range v {
		e.f32(f)
	}
}

// begin writes a size placeholder and returns its offset for end.
func (e *encoder) begin() int {
	off := len(e.buf)
	e.u32(0)
	return off
}

func (e *encoder) end(off int) {
	binary.LittleEndian.PutUint32(e.buf[off:], uint32(len(e.buf)-off-4))
}

func (e *encoder) section(tag uint32, body func()) {
	e.u32(tag)
	off := e.begin()
	body()
	e.end(off)
}

// decoder reads little-endian values with a sticky error: after the first
// failure every read returns zero and err keeps the first cause.
type decoder struct {
	data    []byte
	off     int
	base    int
	section string
	err     error
}

func (d *decoder) fail(reason string, cause error) {
	if d.err == nil {
		d.err = &DecodeError{Section: d.section, Offset: d.base + d.off, Reason: reason, Err: cause}
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.fail("truncated", nil)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) f32() float32 { return math.Float32frombits(d.u32()) }
func (d *decoder) f64() float64 { return math.Float64frombits(d.u64()) }
func (d *decoder) boolean() bool { return d.u8() != 0 }

func (d *decoder) str() string {
	n := d.u32()
	return string(d.take(int(n)))
}

func (d *decoder) frame() graph.OptionalFrame {
	valid := d.boolean()
	v := d.u64()
	if !valid {
		return graph.OptionalFrame{}
	}
	return graph.At(v)
}

// count reads an element count and checks that count × minSize bytes remain,
// so a corrupt count cannot trigger a huge allocation.
func (d *decoder) count(minSize int) int {
	n := d.u32()
	if d.err != nil {
		return 0
	}
	if uint64(n)*uint64(minSize) > uint64(len(d.data)-d.off) {
		d.fail("count exceeds payload", nil)
		return 0
	}
	return int(n)
}

func (d *decoder) floats(n int) []float32 {
	b := d.take(n * 4)
	if b == nil || n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// sub returns a decoder over the next n bytes.
func (d *decoder) sub(section string, n int) *decoder {
	start := d.off
	b := d.take(n)
	if b == nil {
		return &decoder{section: section, err: d.err}
	}
	return &decoder{data: b, base: d.base + start, section: section}
}

func (d *decoder) remaining() int { return len(d.data) - d.off }

// finish flags leftover payload bytes.
func (d *decoder) finish() error {
	if d.err == nil && d.remaining() != 0 {
		d.fail("section size mismatch", ErrTrailer)
	}
	return d.err
}
