package flow

import (
	"encoding/binary"
	"math"

	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// NewChunk allocates an output chunk of n samples (fixed types) or with room
// for n objects (object types).
func NewChunk(t *sampletype.T, n int) *Chunk {
	if t.Fixed() {
		return &Chunk{Type: t, Bytes: make([]byte, n*t.Size)}
	}
	return &Chunk{Type: t, Objects: make([]interface{}, 0, n)}
}

// Sample layout is little-endian IEEE-754; complex32 is an interleaved
// (I, Q) float32 pair. These helpers are index-based so blocks never deal
// with byte offsets.

// Float32 reads sample i of a real32 chunk.
func (c *Chunk) Float32(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(c.Bytes[i*4:]))
}

// SetFloat32 writes sample i of a real32 chunk.
func (c *Chunk) SetFloat32(i int, v float32) {
	binary.LittleEndian.PutUint32(c.Bytes[i*4:], math.Float32bits(v))
}

// Complex64 reads sample i of a complex32 chunk.
func (c *Chunk) Complex64(i int) complex64 {
	re := math.Float32frombits(binary.LittleEndian.Uint32(c.Bytes[i*8:]))
	im := math.Float32frombits(binary.LittleEndian.Uint32(c.Bytes[i*8+4:]))
	return complex(re, im)
}

// SetComplex64 writes sample i of a complex32 chunk.
func (c *Chunk) SetComplex64(i int, v complex64) {
	binary.LittleEndian.PutUint32(c.Bytes[i*8:], math.Float32bits(real(v)))
	binary.LittleEndian.PutUint32(c.Bytes[i*8+4:], math.Float32bits(imag(v)))
}

// Byte reads sample i of a byte or bit chunk.
func (c *Chunk) Byte(i int) byte { return c.Bytes[i] }

// SetByte writes sample i of a byte or bit chunk.
func (c *Chunk) SetByte(i int, v byte) { c.Bytes[i] = v }

// Append adds an object sample to an object chunk.
func (c *Chunk) Append(v interface{}) { c.Objects = append(c.Objects, v) }
