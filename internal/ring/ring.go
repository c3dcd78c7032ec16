// Package ring implements a lock-free single-producer single-consumer
// ring buffer for interleaved audio frames.
//
// The buffer is generic over the sample type so the same implementation
// serves both the int16 producer side and the float32 sink side of the
// bridge without runtime dispatch.
//
// Thread assignment:
//   - Write, ResetStats: producer goroutine only
//   - Read: consumer goroutine only
//   - AvailableRead, AvailableWrite, FillFraction, Stats: either side
//
// Memory ordering: Go's sync/atomic provides sequential consistency,
// which subsumes the acquire/release pairing the SPSC discipline needs.
// The writer publishes data before storing the new write position; the
// reader loads the write position before touching the data. Each position
// is modified by exactly one role, so loads of one's own position need no
// synchronisation at all.
package ring

import "sync/atomic"

// Sample is the type constraint for supported sample formats.
type Sample interface {
	int16 | float32
}

// cacheLinePad keeps the two positions on distinct cache lines to avoid
// false sharing between the producer and consumer cores.
const cacheLinePad = 64 - 4 // 64-byte line minus one atomic.Uint32

// Stats holds the buffer's observability counters. Counters are updated
// only by their owning role and read without synchronisation by the
// other; values may be momentarily stale but are never torn.
type Stats struct {
	TotalWritten uint64
	TotalRead    uint64
	Overruns     uint64
	Underruns    uint64
}

// Buffer is a lock-free SPSC ring buffer of interleaved frames.
// One slot is kept unused to distinguish a full buffer from an empty one.
type Buffer[T Sample] struct {
	writePos atomic.Uint32
	_        [cacheLinePad]byte
	readPos  atomic.Uint32
	_        [cacheLinePad]byte

	totalWritten atomic.Uint64
	totalRead    atomic.Uint64
	overruns     atomic.Uint64
	underruns    atomic.Uint64

	data     []T
	capacity uint32 // frames, always a power of two
	mask     uint32 // capacity - 1
	channels int
}

// New creates a ring buffer holding at least capacityFrames frames of
// channels interleaved samples. The capacity is rounded up to the next
// power of two (minimum 1). channels must be at least 1.
func New[T Sample](capacityFrames, channels int) *Buffer[T] {
	if capacityFrames < 1 {
		capacityFrames = 1
	}
	if channels < 1 {
		channels = 1
	}
	capacity := nextPowerOf2(uint32(capacityFrames))

	return &Buffer[T]{
		data:     make([]T, int(capacity)*channels),
		capacity: capacity,
		mask:     capacity - 1,
		channels: channels,
	}
}

// Write appends frames interleaved frames from src. The write is
// all-or-nothing: if there is not enough space for every frame, nothing
// is written, the overrun counter is incremented, and false is returned.
// Only call from the producer goroutine.
func (b *Buffer[T]) Write(src []T, frames int) bool {
	if frames <= 0 || len(src) < frames*b.channels {
		return false
	}

	w := b.writePos.Load()
	r := b.readPos.Load()

	available := (r - w - 1) & b.mask
	if uint32(frames) > available {
		b.overruns.Add(1)
		return false
	}

	pos := w & b.mask
	b.copyFrames(b.data, int(pos), src, 0, frames)

	b.writePos.Store(w + uint32(frames))
	b.totalWritten.Add(uint64(frames))
	return true
}

// Read copies up to frames interleaved frames into dst and returns the
// number of frames actually read. A read that cannot satisfy the full
// request counts as an underrun, including the empty case which returns 0.
// Only call from the consumer goroutine.
func (b *Buffer[T]) Read(dst []T, frames int) int {
	if frames <= 0 || len(dst) < frames*b.channels {
		return 0
	}

	w := b.writePos.Load()
	r := b.readPos.Load()

	available := (w - r) & b.mask
	if available == 0 {
		b.underruns.Add(1)
		return 0
	}

	toRead := uint32(frames)
	if toRead > available {
		toRead = available
	}

	pos := r & b.mask
	b.copyFramesOut(dst, 0, int(pos), int(toRead))

	b.readPos.Store(r + toRead)
	b.totalRead.Add(uint64(toRead))

	if int(toRead) < frames {
		b.underruns.Add(1)
	}
	return int(toRead)
}

// AvailableRead returns the number of frames ready to be read.
func (b *Buffer[T]) AvailableRead() int {
	w := b.writePos.Load()
	r := b.readPos.Load()
	return int((w - r) & b.mask)
}

// AvailableWrite returns the number of frames that can be written
// without overrunning.
func (b *Buffer[T]) AvailableWrite() int {
	w := b.writePos.Load()
	r := b.readPos.Load()
	return int((r - w - 1) & b.mask)
}

// FillFraction returns AvailableRead / Capacity in [0, 1).
func (b *Buffer[T]) FillFraction() float32 {
	return float32(b.AvailableRead()) / float32(b.capacity)
}

// Capacity returns the buffer capacity in frames.
func (b *Buffer[T]) Capacity() int {
	return int(b.capacity)
}

// Channels returns the number of samples per frame.
func (b *Buffer[T]) Channels() int {
	return b.channels
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() Stats {
	return Stats{
		TotalWritten: b.totalWritten.Load(),
		TotalRead:    b.totalRead.Load(),
		Overruns:     b.overruns.Load(),
		Underruns:    b.underruns.Load(),
	}
}

// ResetStats zeroes all counters.
func (b *Buffer[T]) ResetStats() {
	b.totalWritten.Store(0)
	b.totalRead.Store(0)
	b.overruns.Store(0)
	b.underruns.Store(0)
}

// copyFrames copies frames from src (starting at frame srcFrame) into the
// ring at frame index dstFrame, wrapping as needed.
func (b *Buffer[T]) copyFrames(dst []T, dstFrame int, src []T, srcFrame, frames int) {
	first := int(b.capacity) - dstFrame
	if first > frames {
		first = frames
	}
	copy(dst[dstFrame*b.channels:(dstFrame+first)*b.channels],
		src[srcFrame*b.channels:(srcFrame+first)*b.channels])
	if first < frames {
		copy(dst[:(frames-first)*b.channels],
			src[(srcFrame+first)*b.channels:(srcFrame+frames)*b.channels])
	}
}

// copyFramesOut copies frames out of the ring starting at frame index
// srcFrame into dst, wrapping as needed.
func (b *Buffer[T]) copyFramesOut(dst []T, dstFrame, srcFrame, frames int) {
	first := int(b.capacity) - srcFrame
	if first > frames {
		first = frames
	}
	copy(dst[dstFrame*b.channels:(dstFrame+first)*b.channels],
		b.data[srcFrame*b.channels:(srcFrame+first)*b.channels])
	if first < frames {
		copy(dst[(dstFrame+first)*b.channels:(dstFrame+frames)*b.channels],
			b.data[:(frames-first)*b.channels])
	}
}

// nextPowerOf2 rounds n up to the next power of two, minimum 1.
func nextPowerOf2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	power := uint32(1)
	for power < n {
		power <<= 1
	}
	return power
}
