package blocks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

func real32(t *testing.T) *sampletype.T {
	t.Helper()
	typ, ok := sampletype.NewRegistry().Lookup("real32")
	require.True(t, ok)
	return typ
}

func realChunk(typ *sampletype.T, values ...float32) *flow.Chunk {
	c := flow.NewChunk(typ, len(values))
	for i, v := range values {
		c.SetFloat32(i, v)
	}
	return c
}

func initBlock(t *testing.T, b flow.Block, sigIdx int, rate float64, reg *sampletype.Registry) flow.ResolvedSignature {
	t.Helper()
	sig := b.Signatures()[sigIdx]
	rs := flow.ResolvedSignature{RateScale: make([]float64, len(sig.Outputs))}
	for _, ref := range sig.Inputs {
		typ, ok := reg.Lookup(ref.Name)
		require.True(t, ok)
		rs.Inputs = append(rs.Inputs, typ)
	}
	for i, name := range sig.Outputs {
		typ, ok := reg.Lookup(name)
		require.True(t, ok)
		rs.Outputs = append(rs.Outputs, typ)
		rs.RateScale[i] = sig.Scale(i)
	}
	require.NoError(t, b.Initialize(rs, rate))
	return rs
}

func TestGainReal(t *testing.T) {
	reg := sampletype.NewRegistry()
	g := NewGain(2.5)
	initBlock(t, g, 0, 48000, reg)

	typ, _ := reg.Lookup("real32")
	out, err := g.Process([]*flow.Chunk{realChunk(typ, 1, -2, 0.5)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float32(2.5), out[0].Float32(0))
	assert.Equal(t, float32(-5), out[0].Float32(1))
	assert.Equal(t, float32(1.25), out[0].Float32(2))
}

func TestGainComplex(t *testing.T) {
	reg := sampletype.NewRegistry()
	g := NewGain(3)
	initBlock(t, g, 1, 48000, reg)

	typ, _ := reg.Lookup("complex32")
	in := flow.NewChunk(typ, 2)
	in.SetComplex64(0, complex(1, -1))
	in.SetComplex64(1, complex(0.5, 2))
	out, err := g.Process([]*flow.Chunk{in})
	require.NoError(t, err)
	assert.Equal(t, complex64(complex(3, -3)), out[0].Complex64(0))
	assert.Equal(t, complex64(complex(1.5, 6)), out[0].Complex64(1))
}

func TestMultiplyReal(t *testing.T) {
	reg := sampletype.NewRegistry()
	m := NewMultiply()
	initBlock(t, m, 1, 48000, reg)

	typ, _ := reg.Lookup("real32")
	out, err := m.Process([]*flow.Chunk{
		realChunk(typ, 2, 3, 4),
		realChunk(typ, 5, 6, 7),
	})
	require.NoError(t, err)
	assert.Equal(t, float32(10), out[0].Float32(0))
	assert.Equal(t, float32(18), out[0].Float32(1))
	assert.Equal(t, float32(28), out[0].Float32(2))
}

func TestMultiplyTrimsToShorterInput(t *testing.T) {
	reg := sampletype.NewRegistry()
	m := NewMultiply()
	initBlock(t, m, 1, 48000, reg)

	typ, _ := reg.Lookup("real32")
	out, err := m.Process([]*flow.Chunk{
		realChunk(typ, 2, 3, 4, 5),
		realChunk(typ, 10, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out[0].Len())
}

func TestSignalSourceSine(t *testing.T) {
	reg := sampletype.NewRegistry()
	src := NewSignalSource(48000, 1000)
	src.ChunkSize = 16
	initBlock(t, src, 0, 48000, reg)

	out, err := src.Process(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 16, out[0].Len())

	step := 2 * math.Pi * 1000 / 48000
	for i := 0; i < 16; i++ {
		want := float32(math.Sin(float64(i) * step))
		assert.InDelta(t, want, out[0].Float32(i), 1e-5, "sample %d", i)
	}
}

func TestSignalSourceLimitEndsStream(t *testing.T) {
	reg := sampletype.NewRegistry()
	src := NewSignalSource(48000, 440)
	src.ChunkSize = 64
	src.Limit = 100
	initBlock(t, src, 0, 48000, reg)

	total := 0
	for {
		out, err := src.Process(nil)
		if len(out) > 0 {
			total += out[0].Len()
		}
		if err == flow.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 100, total)
}

func TestCollectAccumulates(t *testing.T) {
	reg := sampletype.NewRegistry()
	c := NewCollect()
	initBlock(t, c, 0, 8000, reg)

	typ, _ := reg.Lookup("real32")
	_, err := c.Process([]*flow.Chunk{realChunk(typ, 1, 2)})
	require.NoError(t, err)
	_, err = c.Process([]*flow.Chunk{realChunk(typ, 3)})
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2, 3}, c.Samples())
	assert.Equal(t, 8000.0, c.InputRate())
}

func TestThrottlePassesThrough(t *testing.T) {
	reg := sampletype.NewRegistry()
	thr := NewThrottle()
	initBlock(t, thr, 0, 1e6, reg)

	typ, _ := reg.Lookup("real32")
	out, err := thr.Process([]*flow.Chunk{realChunk(typ, 7, 8, 9)})
	require.NoError(t, err)
	assert.Equal(t, float32(7), out[0].Float32(0))
	assert.Equal(t, float32(9), out[0].Float32(2))
}
