package buffers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(b []byte, start byte) {
	for i := range b {
		b[i] = start + byte(i)
	}
}

func TestRingWriteRead(t *testing.T) {
	r := NewRing(4, 16)
	rd := r.AddReader()

	buf, err := r.ReserveWrite(4)
	require.NoError(t, err)
	require.Len(t, buf, 16)
	fill(buf, 0)
	r.CommitWrite(4)

	got, err := rd.Peek(1)
	require.NoError(t, err)
	assert.Len(t, got, 16)
	assert.Equal(t, byte(0), got[0])
	assert.Equal(t, byte(15), got[15])
	rd.Advance(4)
	assert.Equal(t, 0, rd.Buffered())
}

func TestRingReserveCapsAtWrap(t *testing.T) {
	r := NewRing(1, 8)
	rd := r.AddReader()

	// Fill 6, consume 6: cursors at 6, contiguous region runs to 8.
	buf, _ := r.ReserveWrite(6)
	require.Len(t, buf, 6)
	r.CommitWrite(6)
	got, _ := rd.Peek(6)
	rd.Advance(len(got))

	buf, err := r.ReserveWrite(8)
	require.NoError(t, err)
	// Only 2 bytes until the wrap point.
	assert.Len(t, buf, 2)
	r.CommitWrite(2)

	buf, err = r.ReserveWrite(6)
	require.NoError(t, err)
	assert.Len(t, buf, 6)
}

func TestRingPeekJoinsAcrossWrap(t *testing.T) {
	r := NewRing(1, 8)
	rd := r.AddReader()

	buf, _ := r.ReserveWrite(6)
	fill(buf, 0)
	r.CommitWrite(6)
	got, _ := rd.Peek(1)
	rd.Advance(len(got))

	// Write 6 more: 2 before the wrap, 4 after.
	buf, _ = r.ReserveWrite(6)
	fill(buf, 100)
	r.CommitWrite(len(buf))
	rest := 6 - len(buf)
	buf, _ = r.ReserveWrite(rest)
	fill(buf, 102)
	r.CommitWrite(len(buf))

	// A min larger than the contiguous tail joins the two regions.
	got, err := rd.Peek(6)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, []byte{100, 101, 102, 103, 104, 105}, got)
	rd.Advance(6)
}

func TestRingBackpressure(t *testing.T) {
	r := NewRing(1, 4)
	rd := r.AddReader()

	buf, _ := r.ReserveWrite(4)
	require.Len(t, buf, 4)
	r.CommitWrite(4)

	// Ring is full: the writer must block until the reader advances.
	unblocked := make(chan struct{})
	go func() {
		buf, err := r.ReserveWrite(1)
		assert.NoError(t, err)
		assert.NotEmpty(t, buf)
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("writer did not block on a full ring")
	case <-time.After(20 * time.Millisecond):
	}

	rd.Peek(1)
	rd.Advance(2)
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("writer still blocked after reader advanced")
	}
}

func TestRingFanOutGatedBySlowestReader(t *testing.T) {
	r := NewRing(1, 4)
	fast := r.AddReader()
	slow := r.AddReader()

	if _, err := r.ReserveWrite(4); err != nil {
		t.Fatal(err)
	}
	r.CommitWrite(4)
	got, _ := fast.Peek(1)
	fast.Advance(len(got))

	// The fast reader consumed everything; the slow one gates the writer.
	blocked := make(chan struct{})
	go func() {
		r.ReserveWrite(1)
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("writer overtook the slow reader")
	case <-time.After(20 * time.Millisecond):
	}

	got, _ = slow.Peek(1)
	slow.Advance(len(got))
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("writer still blocked after slow reader advanced")
	}
}

func TestRingCloseDrainsThenEOS(t *testing.T) {
	r := NewRing(1, 8)
	rd := r.AddReader()

	buf, _ := r.ReserveWrite(3)
	fill(buf, 1)
	r.CommitWrite(3)
	r.Close()

	got, err := rd.Peek(8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
	rd.Advance(3)

	_, err = rd.Peek(1)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = r.ReserveWrite(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRingCloseWakesBlockedReader(t *testing.T) {
	r := NewRing(4, 8)
	rd := r.AddReader()

	done := make(chan error, 1)
	go func() {
		_, err := rd.Peek(1)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	r.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by close")
	}
}

func TestRingDetachUnblocksWriter(t *testing.T) {
	r := NewRing(1, 2)
	stuck := r.AddReader()

	buf, _ := r.ReserveWrite(2)
	r.CommitWrite(len(buf))

	blocked := make(chan struct{})
	go func() {
		r.ReserveWrite(1)
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("writer should block on the unadvanced reader")
	case <-time.After(20 * time.Millisecond):
	}

	stuck.Detach()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("detach did not unblock the writer")
	}
}

// Committed and advanced counters must satisfy the transport invariant:
// committed >= advanced for every reader at all times.
func TestRingCountersInvariant(t *testing.T) {
	r := NewRing(2, 64)
	rd := r.AddReader()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		total := 0
		for total < 1000 {
			buf, err := r.ReserveWrite(16)
			if err != nil {
				return
			}
			n := len(buf) / 2
			if total+n > 1000 {
				n = 1000 - total
			}
			r.CommitWrite(n)
			total += n
		}
		r.Close()
	}()
	go func() {
		defer wg.Done()
		for {
			b, err := rd.Peek(1)
			if err != nil {
				return
			}
			rd.Advance(len(b) / 2)
			if r.Committed() < rd.Advanced() {
				t.Error("reader advanced past committed data")
				return
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, int64(1000), r.Committed())
	assert.Equal(t, int64(1000), rd.Advanced())
}
