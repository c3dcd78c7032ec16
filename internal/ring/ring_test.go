package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_CapacityRounding verifies capacity is rounded up to a power
// of two with a minimum of 1.
func TestNew_CapacityRounding(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"Zero", 0, 1},
		{"One", 1, 1},
		{"ExactPower", 64, 64},
		{"RoundUp", 480, 512},
		{"RoundUpSmall", 3, 4},
		{"Large", 1921, 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New[float32](tt.requested, 2)
			assert.Equal(t, tt.want, b.Capacity())
			assert.Zero(t, b.Capacity()&(b.Capacity()-1), "capacity must be a power of two")
		})
	}
}

// TestBuffer_WriteRead verifies basic FIFO transfer of interleaved frames.
func TestBuffer_WriteRead(t *testing.T) {
	b := New[int16](8, 2)

	src := []int16{1, 2, 3, 4, 5, 6}
	require.True(t, b.Write(src, 3))
	assert.Equal(t, 3, b.AvailableRead())

	dst := make([]int16, 6)
	got := b.Read(dst, 3)
	require.Equal(t, 3, got)
	assert.Equal(t, src, dst)
	assert.Equal(t, 0, b.AvailableRead())
}

// TestBuffer_AvailableInvariant verifies that read and write
// availability always sum to capacity-1 (one slot reserved to
// distinguish full from empty).
func TestBuffer_AvailableInvariant(t *testing.T) {
	b := New[float32](16, 2)
	frame := []float32{0.5, -0.5}
	dst := make([]float32, 2)

	check := func() {
		t.Helper()
		assert.Equal(t, b.Capacity()-1, b.AvailableRead()+b.AvailableWrite())
	}

	check()
	for i := 0; i < 100; i++ {
		b.Write(frame, 1)
		check()
		if i%3 == 0 {
			b.Read(dst, 1)
			check()
		}
	}
}

// TestBuffer_OverrunPolicy verifies an oversized write changes nothing
// and counts exactly one overrun.
func TestBuffer_OverrunPolicy(t *testing.T) {
	b := New[int16](4, 1) // 3 usable slots

	require.True(t, b.Write([]int16{1, 2, 3}, 3))

	before := b.Stats()
	ok := b.Write([]int16{9}, 1)
	assert.False(t, ok)

	after := b.Stats()
	assert.Equal(t, before.Overruns+1, after.Overruns)
	assert.Equal(t, before.TotalWritten, after.TotalWritten, "failed write must not count as written")
	assert.Equal(t, 3, b.AvailableRead(), "buffer contents unchanged")

	dst := make([]int16, 3)
	b.Read(dst, 3)
	assert.Equal(t, []int16{1, 2, 3}, dst)
}

// TestBuffer_UnderrunAccounting verifies empty and short reads both
// count as underruns.
func TestBuffer_UnderrunAccounting(t *testing.T) {
	b := New[float32](8, 1)
	dst := make([]float32, 8)

	got := b.Read(dst, 4)
	assert.Equal(t, 0, got)
	assert.Equal(t, uint64(1), b.Stats().Underruns, "empty read counts one underrun")

	b.Write([]float32{1, 2}, 2)
	got = b.Read(dst, 4)
	assert.Equal(t, 2, got, "short read returns what is available")
	assert.Equal(t, uint64(2), b.Stats().Underruns, "short read also counts an underrun")
}

// TestBuffer_WrapAround verifies data integrity across the wrap point.
func TestBuffer_WrapAround(t *testing.T) {
	b := New[int16](8, 2)
	dst := make([]int16, 16)

	// Advance positions close to the wrap boundary.
	for i := 0; i < 6; i++ {
		require.True(t, b.Write([]int16{int16(i), int16(-i)}, 1))
	}
	require.Equal(t, 6, b.Read(dst, 6))

	// This write spans the boundary.
	src := []int16{10, 11, 12, 13, 14, 15, 16, 17}
	require.True(t, b.Write(src, 4))

	got := b.Read(dst, 4)
	require.Equal(t, 4, got)
	assert.Equal(t, src, dst[:8])
}

// TestBuffer_FillFraction verifies fill tracking.
func TestBuffer_FillFraction(t *testing.T) {
	b := New[float32](16, 1)
	assert.Zero(t, b.FillFraction())

	src := make([]float32, 8)
	b.Write(src, 8)
	assert.InDelta(t, 0.5, float64(b.FillFraction()), 1e-6)
}

// TestBuffer_ResetStats verifies counters go back to zero.
func TestBuffer_ResetStats(t *testing.T) {
	b := New[int16](4, 1)
	b.Write([]int16{1}, 1)
	dst := make([]int16, 4)
	b.Read(dst, 4)

	b.ResetStats()
	assert.Equal(t, Stats{}, b.Stats())
}

// TestBuffer_ConcurrentFIFO runs a producer and a consumer goroutine
// and verifies the consumed stream is a gap-free prefix of the produced
// stream (no reorder, no loss, no duplication under SPSC).
func TestBuffer_ConcurrentFIFO(t *testing.T) {
	const total = 200000
	b := New[int16](512, 1)

	var consumed []int16
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		frame := make([]int16, 1)
		for i := 0; i < total; {
			frame[0] = int16(i % 32768)
			if b.Write(frame, 1) {
				i++
			}
		}
	}()

	go func() {
		defer wg.Done()
		dst := make([]int16, 64)
		for len(consumed) < total {
			n := b.Read(dst, 64)
			consumed = append(consumed, dst[:n]...)
		}
	}()

	wg.Wait()

	require.Len(t, consumed, total)
	for i, v := range consumed {
		if v != int16(i%32768) {
			t.Fatalf("sequence broken at %d: got %d", i, v)
		}
	}
}
