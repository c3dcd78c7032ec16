package audiobridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/tphakala/simd/f32"
)

// SinkDevice is the narrow surface the adapter needs from a host audio
// output device. Implementations wrap a concrete device API (WASAPI,
// ALSA, an oto player callback) behind these three operations.
type SinkDevice interface {
	// AvailableFrames returns how many frames the device can accept
	// right now (device buffer size minus current padding).
	AvailableFrames() (int, error)

	// Acquire returns the device's write region for frames frames. The
	// returned slice is valid until the matching Release.
	Acquire(frames int) ([]byte, error)

	// Release commits frames frames written into the acquired region.
	Release(frames int) error
}

// ErrInvalidSinkConfig indicates invalid sink adapter parameters.
var ErrInvalidSinkConfig = errors.New("invalid sink adapter configuration")

// SinkStats holds the adapter's observability counters.
type SinkStats struct {
	FramesWritten uint64
	PullEvents    uint64
	Underruns     uint64
	AvgLatencyMs  float64
}

// SinkAdapter pulls float frames from a bridge on each device pull
// event, converts them to the device's integer format with clamping,
// and writes them into the device buffer. It holds a non-owning device
// reference: Close does not touch the device.
type SinkAdapter struct {
	device   SinkDevice
	channels int
	bits     int

	sinkBufferFrames int
	scratch          []float32
	gain             float32

	stats         SinkStats
	lastStatsTime time.Time
	log           Logger
}

// NewSinkAdapter creates an adapter delivering frames of channels
// samples in the given integer width (SinkBits16 or SinkBits32) to
// device. sinkBufferFrames is the device's buffer size; the adapter
// sizes its scratch to twice that so a late pull can catch up in one
// call.
func NewSinkAdapter(device SinkDevice, channels, bits, sinkBufferFrames int, logger Logger) (*SinkAdapter, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: device is nil", ErrInvalidSinkConfig)
	}
	if channels < 1 || sinkBufferFrames <= 0 {
		return nil, fmt.Errorf("%w: channels=%d, buffer=%d frames", ErrInvalidSinkConfig, channels, sinkBufferFrames)
	}
	if bits != SinkBits16 && bits != SinkBits32 {
		return nil, fmt.Errorf("%w: unsupported sample width %d", ErrInvalidSinkConfig, bits)
	}

	return &SinkAdapter{
		device:           device,
		channels:         channels,
		bits:             bits,
		sinkBufferFrames: sinkBufferFrames,
		scratch:          make([]float32, sinkScratchFactor*sinkBufferFrames*channels),
		gain:             1,
		lastStatsTime:    time.Now(),
		log:              logger,
	}, nil
}

// SetGain sets the master gain applied to pulled samples before
// conversion. Call from the sink goroutine, or before playback starts.
func (s *SinkAdapter) SetGain(gain float32) {
	if gain >= 0 {
		s.gain = gain
	}
}

// OnPull services one device pull event. Device API failures are
// returned to the caller; bridge underruns are counted and filled with
// silence instead.
func (s *SinkAdapter) OnPull(bridge *Bridge) error {
	s.stats.PullEvents++

	avail, err := s.device.AvailableFrames()
	if err != nil {
		return fmt.Errorf("sink: query available frames: %w", err)
	}
	if avail <= 0 {
		// Device buffer full, nothing to do.
		return nil
	}

	if limit := len(s.scratch) / s.channels; avail > limit {
		avail = limit
	}

	useful := bridge.pull(s.scratch, avail)
	if useful == 0 {
		// Bridge output ring empty. Deliver silence so the device does
		// not replay stale buffer contents.
		s.stats.Underruns++
		buf, err := s.device.Acquire(avail)
		if err != nil {
			return fmt.Errorf("sink: acquire: %w", err)
		}
		for i := range buf[:avail*s.channels*(s.bits/8)] {
			buf[i] = 0
		}
		if err := s.device.Release(avail); err != nil {
			return fmt.Errorf("sink: release: %w", err)
		}
		return nil
	}

	samples := s.scratch[:avail*s.channels]
	if s.gain != 1 {
		f32.Scale(samples, samples, s.gain)
	}

	buf, err := s.device.Acquire(avail)
	if err != nil {
		return fmt.Errorf("sink: acquire: %w", err)
	}
	switch s.bits {
	case SinkBits16:
		convertFloatToInt16(buf, samples)
	case SinkBits32:
		convertFloatToInt32(buf, samples)
	}
	if err := s.device.Release(avail); err != nil {
		return fmt.Errorf("sink: release: %w", err)
	}

	s.stats.FramesWritten += uint64(avail)
	s.maybeLogStats(bridge)
	return nil
}

// Stats returns a snapshot of the adapter counters.
func (s *SinkAdapter) Stats() SinkStats {
	return s.stats
}

// Close releases the adapter's scratch buffers. The device handle is
// caller-owned and untouched.
func (s *SinkAdapter) Close() error {
	s.scratch = nil
	return nil
}

// maybeLogStats emits the periodic adapter stats line and refreshes the
// fill-derived latency estimate.
func (s *SinkAdapter) maybeLogStats(bridge *Bridge) {
	now := time.Now()
	if now.Sub(s.lastStatsTime) < sinkStatsLogSeconds*time.Second {
		return
	}
	s.lastStatsTime = now

	ringMs := float64(bridge.outputRing.Capacity()) * 1000 / float64(bridge.config.TargetRate)
	s.stats.AvgLatencyMs = float64(bridge.FillFraction()) * ringMs

	if s.log != nil {
		s.log.Printf("sink: written=%d frames, pulls=%d, underruns=%d, latency=%.1f ms",
			s.stats.FramesWritten, s.stats.PullEvents, s.stats.Underruns, s.stats.AvgLatencyMs)
	}
}

// convertFloatToInt16 clamps each sample to [-1, 1], scales to the
// 16-bit range, and stores it little-endian. Truncation toward zero.
func convertFloatToInt16(dst []byte, src []float32) {
	for i, v := range src {
		n := int16(clampSample(v) * maxInt16Value)
		dst[2*i] = byte(n)
		dst[2*i+1] = byte(n >> 8)
	}
}

// convertFloatToInt32 is the 32-bit variant of convertFloatToInt16.
func convertFloatToInt32(dst []byte, src []float32) {
	for i, v := range src {
		n := int32(float64(clampSample(v)) * maxInt32Value)
		dst[4*i] = byte(n)
		dst[4*i+1] = byte(n >> 8)
		dst[4*i+2] = byte(n >> 16)
		dst[4*i+3] = byte(n >> 24)
	}
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
