package flowerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, ""},
		{New(SignatureMismatch, "no match"), SignatureMismatch},
		{Block(BlockRuntimeError, "gain", errors.New("boom")), BlockRuntimeError},
		{fmt.Errorf("wrapped: %w", New(RateMismatch, "bad")), RateMismatch},
		{errors.Join(Block(BlockInitFailed, "fir", errors.New("taps"))), BlockInitFailed},
		{errors.New("plain"), Generic},
		{Code(BufferClosed), BufferClosed},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorsIsMatchesCode(t *testing.T) {
	err := Edge(SignatureMismatch, "a.out -> b.in", "no agreement")
	if !errors.Is(err, SignatureMismatch) {
		t.Error("errors.Is should match the wrapped code")
	}
	if errors.Is(err, RateMismatch) {
		t.Error("errors.Is matched the wrong code")
	}
}

func TestErrorRendering(t *testing.T) {
	err := &E{C: RateMismatch, Block: "mixer", Detail: "48000 vs 44100"}
	msg := err.Error()
	for _, want := range []string{"rate_mismatch", "mixer", "48000 vs 44100"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}
