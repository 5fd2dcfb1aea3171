package blocks

import (
	"sync"

	"github.com/sigflow/sigflow/pkg/core/flow"
	"github.com/sigflow/sigflow/pkg/core/sampletype"
)

// JSONSink accepts any object type carrying the "json" capability and keeps
// the encoded form of every object it consumes, in production order. Its
// input is predicate-typed: the concrete type is whatever the connected
// producer emits.
type JSONSink struct {
	mu      sync.Mutex
	typ     *sampletype.T
	encoded [][]byte
}

// NewJSONSink returns an empty JSON sink.
func NewJSONSink() *JSONSink { return &JSONSink{} }

func (s *JSONSink) Name() string         { return "json_sink" }
func (s *JSONSink) Inputs() []flow.Port  { return []flow.Port{{Name: "in"}} }
func (s *JSONSink) Outputs() []flow.Port { return nil }

func (s *JSONSink) Signatures() []flow.Signature {
	return []flow.Signature{
		{Inputs: []flow.TypeRef{flow.Cap("json")}},
	}
}

func (s *JSONSink) Initialize(sig flow.ResolvedSignature, rate float64) error {
	s.typ = sig.Inputs[0]
	return nil
}

func (s *JSONSink) Process(in []*flow.Chunk) ([]*flow.Chunk, error) {
	src := in[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range src.Objects {
		data, err := s.typ.Encode(obj)
		if err != nil {
			return nil, err
		}
		s.encoded = append(s.encoded, data)
	}
	return nil, nil
}

// Encoded returns a copy of the encoded objects received so far.
func (s *JSONSink) Encoded() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.encoded))
	for i, d := range s.encoded {
		out[i] = append([]byte(nil), d...)
	}
	return out
}
