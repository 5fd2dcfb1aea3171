// Package blocks contains a minimal built-in block set: a signal source,
// basic arithmetic, a throttle and collector-style sinks. It exists to
// exercise the runtime from the demo binary and the tests; a full block
// library lives outside the core.
package blocks

import (
	"math"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// Waveform selects the SignalSource output shape.
type Waveform int

const (
	Sine Waveform = iota
	Ramp
	Constant
)

// SignalSource produces real32 samples at a nominal rate. A Limit of zero
// streams forever; otherwise the source ends the stream after Limit samples.
type SignalSource struct {
	SampleRate float64
	Wave       Waveform
	Frequency  float64
	Amplitude  float32
	Limit      int64
	ChunkSize  int

	produced int64
	phase    float64
	step     float64
	outType  *sampletype.T
}

// NewSignalSource returns a sine source at the given rate and frequency.
func NewSignalSource(sampleRate, frequency float64) *SignalSource {
	return &SignalSource{
		SampleRate: sampleRate,
		Wave:       Sine,
		Frequency:  frequency,
		Amplitude:  1.0,
		ChunkSize:  1024,
	}
}

func (s *SignalSource) Name() string             { return "signal_source" }
func (s *SignalSource) Inputs() []flow.Port      { return nil }
func (s *SignalSource) Outputs() []flow.Port     { return []flow.Port{{Name: "out"}} }
func (s *SignalSource) Rate() float64            { return s.SampleRate }
func (s *SignalSource) Signatures() []flow.Signature {
	return []flow.Signature{{Outputs: []string{"real32"}}}
}

func (s *SignalSource) Initialize(sig flow.ResolvedSignature, rate float64) error {
	s.outType = sig.Outputs[0]
	s.step = 2 * math.Pi * s.Frequency / rate
	if s.ChunkSize <= 0 {
		s.ChunkSize = 1024
	}
	if s.Amplitude == 0 {
		s.Amplitude = 1.0
	}
	return nil
}

func (s *SignalSource) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	n := s.ChunkSize
	if s.Limit > 0 {
		left := s.Limit - s.produced
		if left <= 0 {
			return nil, flow.ErrEndOfStream
		}
		if int64(n) > left {
			n = int(left)
		}
	}
	out := flow.NewChunk(s.outType, n)
	for i := 0; i < n; i++ {
		var v float32
		switch s.Wave {
		case Sine:
			v = s.Amplitude * float32(math.Sin(s.phase))
			s.phase += s.step
		case Ramp:
			v = s.Amplitude * float32(s.produced+int64(i)) / float32(s.SampleRate)
		case Constant:
			v = s.Amplitude
		}
		out.SetFloat32(i, v)
	}
	s.produced += int64(n)
	if s.Limit > 0 && s.produced >= s.Limit {
		return []*flow.Chunk{out}, flow.ErrEndOfStream
	}
	return []*flow.Chunk{out}, nil
}
