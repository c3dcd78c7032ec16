package audiobridge

import (
	"math"
	"time"

	"github.com/tphakala/go-audio-bridge/internal/engine"
	"github.com/tphakala/go-audio-bridge/internal/ring"
)

// Bridge joins a variable-rate sample producer to a fixed-rate sink.
//
// The producer goroutine calls PushSample (or ProcessChunk) and is the
// only writer to the input ring, the only caller of the resampler, and
// the only writer to the output ring. The sink goroutine calls
// PullSamples and is the only reader of the output ring. The output
// ring is the sole cross-thread crossing; the input ring merely
// decouples per-frame producer callbacks from batch resampling.
type Bridge struct {
	config Config
	log    Logger

	inputRing  *ring.Buffer[int16]
	outputRing *ring.Buffer[float32]

	// resampler stays nil until the first drain delivers samples, since
	// the producer rate is unknown before the first observation.
	resampler *engine.Linear
	estimator rateEstimator

	// lastChunkRate tracks the batched path's reconfigure rule.
	lastChunkRate float64

	inputScratch  []int16
	outputScratch []float32

	// Producer-side counters. Read by Stats without synchronisation;
	// values may be stale on a concurrent snapshot but the rings carry
	// the authoritative flow counters.
	pushCalls       uint64
	resampleCalls   uint64
	chunkCalls      uint64
	inputDrops      uint64
	resamplerErrors uint64

	overrunWarn  *warnLimiter
	underrunWarn *warnLimiter
	outlierWarns int

	lastRateLog time.Time

	closed bool
}

// New creates a bridge from the given configuration. The input ring is
// sized to roughly 10 ms at the target rate (minimum 16 frames); the
// output ring capacity comes from the configuration. Both are rounded
// up to powers of two.
func New(config *Config) (*Bridge, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	inputCapacity := config.TargetRate / inputRingDivisor
	if inputCapacity < minInputRingFrames {
		inputCapacity = minInputRingFrames
	}

	b := &Bridge{
		config:        *config,
		log:           config.Logger,
		inputRing:     ring.New[int16](inputCapacity, config.Channels),
		outputRing:    ring.New[float32](config.OutputRingFrames, config.Channels),
		inputScratch:  make([]int16, initialInputScratchFrames*config.Channels),
		outputScratch: make([]float32, initialOutputScratchFrames*config.Channels),
		overrunWarn:   newWarnLimiter(warnEveryN, 10*time.Millisecond),
		underrunWarn:  newWarnLimiter(warnEveryN, 10*time.Millisecond),
	}

	b.logf("bridge: initialized: %d Hz, %d ch, input=%d frames, output=%d frames",
		config.TargetRate, config.Channels,
		b.inputRing.Capacity(), b.outputRing.Capacity())

	return b, nil
}

// Close releases the bridge in reverse construction order. It must not
// be called while a producer or sink goroutine is still active. Close
// is idempotent.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	b.outputScratch = nil
	b.inputScratch = nil
	if b.resampler != nil {
		b.resampler.Reset()
		b.resampler = nil
	}
	b.outputRing = nil
	b.inputRing = nil
	b.estimator.reset()

	b.logf("bridge: shutdown complete")
	return nil
}

// PushSample feeds one stereo frame from the producer. cyclesPerSample
// is the producer clock interval for this frame; together with the
// configured SyncBase it yields the instantaneous producer rate.
//
// If the input ring is full the oldest frame is dropped so the newest
// survives. The call then folds the rate observation into the estimator
// and drains the input ring through the resampler.
//
// PushSample is for two-channel bridges; use ProcessChunk for other
// layouts. Only call from the producer goroutine.
func (b *Bridge) PushSample(left, right int16, cyclesPerSample float32) {
	if b.closed || b.config.Channels != 2 {
		return
	}

	b.pushCalls++
	b.pushFrame(left, right)
	b.observeRate(cyclesPerSample)
	b.drainInput()
}

// pushFrame appends one stereo frame to the input ring, dropping the
// oldest frame when full so the newest survives.
func (b *Bridge) pushFrame(left, right int16) {
	frame := [2]int16{left, right}
	if !b.inputRing.Write(frame[:], 1) {
		var dropped [2]int16
		b.inputRing.Read(dropped[:], 1)
		b.inputRing.Write(frame[:], 1)
		b.inputDrops++
	}
}

// observeRate updates the estimator and emits the capped outlier
// warning plus the periodic rate log line.
func (b *Bridge) observeRate(cyclesPerSample float32) {
	if b.estimator.observe(cyclesPerSample, b.config.SyncBase, b.config.TargetRate) {
		if b.estimator.sampleCount%rateLogSampleInterval == 0 {
			now := time.Now()
			if now.Sub(b.lastRateLog) > 5*time.Second {
				b.lastRateLog = now
				b.logf("bridge: rate: ema=%.2f Hz, input=%d frames, output=%.1f%%",
					b.estimator.current(),
					b.inputRing.AvailableRead(),
					b.outputRing.FillFraction()*100)
			}
		}
		return
	}

	if b.outlierWarns < rateOutlierWarnLimit {
		b.outlierWarns++
		b.logf("bridge: rejected outlier rate observation (cycles=%.2f)", cyclesPerSample)
	}
}

// drainInput moves buffered producer frames through the resampler into
// the output ring. At most drainMaxFrames are consumed per call and
// nothing happens below drainMinFrames, so resampling runs in efficient
// batches rather than per pushed frame.
func (b *Bridge) drainInput() {
	available := b.inputRing.AvailableRead()
	if available < drainMinFrames {
		return
	}

	toProcess := available
	if toProcess > drainMaxFrames {
		toProcess = drainMaxFrames
	}

	b.resampleCalls++

	if needed := toProcess * b.config.Channels; needed > len(b.inputScratch) {
		b.inputScratch = make([]int16, toProcess*scratchGrowthFactor*b.config.Channels)
	}

	read := b.inputRing.Read(b.inputScratch, toProcess)
	if read <= 0 {
		return
	}

	if b.resampler == nil {
		initialRate := b.estimator.current()
		if initialRate < float64(b.config.TargetRate) {
			initialRate = float64(b.config.TargetRate)
		}
		r, err := engine.NewLinear(initialRate, b.config.TargetRate, b.config.Channels)
		if err != nil {
			b.resamplerErrors++
			b.logf("bridge: resampler init failed: %v", err)
			return
		}
		b.resampler = r
		b.logf("bridge: resampler initialized: %.2f Hz -> %d Hz", initialRate, b.config.TargetRate)
	} else if rate := b.estimator.current(); rate > 0 {
		// Drift correction biases the ratio on top of the EMA estimate
		// to steer the output ring toward its fill target.
		b.resampler.SetInputRate(rate * b.driftAdjustment())
	}

	expected := int(float64(read)*float64(b.config.TargetRate)/b.resampler.InputRate()) + drainOutputHeadroom
	if needed := expected * b.config.Channels; needed > len(b.outputScratch) {
		b.outputScratch = make([]float32, expected*scratchGrowthFactor*b.config.Channels)
	}

	produced := b.resampler.Process(b.inputScratch, read, b.outputScratch, expected)
	if produced > maxResampledFrames {
		b.resamplerErrors++
		b.logf("bridge: resampler produced %d frames, past sanity bound; dropping", produced)
		return
	}
	if produced == 0 {
		return
	}

	if !b.outputRing.Write(b.outputScratch, produced) {
		if b.overrunWarn.allow() {
			b.logf("bridge: output ring full, dropped %d frames (overruns=%d, fill=%.1f%%)",
				produced, b.outputRing.Stats().Overruns, b.outputRing.FillFraction()*100)
		}
	}
}

// driftAdjustment returns the multiplicative ratio bias from the slow
// fill-feedback controller: below the target band the resampler is sped
// up (more output per input), above it slowed down.
func (b *Bridge) driftAdjustment() float64 {
	fill := float64(b.outputRing.FillFraction())
	switch {
	case fill < driftFillTarget-driftFillBand:
		return driftPullFaster
	case fill > driftFillTarget+driftFillBand:
		return driftPullSlower
	default:
		return 1.0
	}
}

// ProcessChunk is the batched producer entry point: frames interleaved
// frames are resampled directly into the output ring, bypassing the
// input ring. The instantaneous producer rate is
// syncCyclesPerSec / cpuCyclesPerSample.
//
// A rate jump of more than 100 Hz reconfigures the resampler outright;
// smaller movements are live input-rate updates. Only call from the
// producer goroutine, and do not mix with concurrent PushSample calls.
func (b *Bridge) ProcessChunk(samples []int16, frames int, cpuCyclesPerSample, syncCyclesPerSec float64) {
	if b.closed || frames <= 0 || len(samples) < frames*b.config.Channels {
		return
	}
	if cpuCyclesPerSample <= 0 {
		return
	}

	b.chunkCalls++

	rate := syncCyclesPerSec / cpuCyclesPerSample
	if rate < chunkRateMin || rate > chunkRateMax {
		return
	}

	drift := b.driftAdjustment()

	if b.resampler == nil || math.Abs(rate-b.lastChunkRate) > chunkReconfigureHz {
		r, err := engine.NewLinear(rate*drift, b.config.TargetRate, b.config.Channels)
		if err != nil {
			b.resamplerErrors++
			b.logf("bridge: resampler reconfigure failed: %v", err)
			return
		}
		b.resampler = r
		b.lastChunkRate = rate
	} else {
		b.resampler.SetInputRate(rate * drift)
	}

	expected := int(float64(frames)*float64(b.config.TargetRate)/rate) + chunkOutputHeadroom
	if needed := expected * b.config.Channels; needed > len(b.outputScratch) {
		b.outputScratch = make([]float32, expected*scratchGrowthFactor*b.config.Channels)
	}

	produced := b.resampler.Process(samples, frames, b.outputScratch, expected)
	if produced > maxResampledFrames {
		b.resamplerErrors++
		b.logf("bridge: resampler produced %d frames, past sanity bound; dropping", produced)
		return
	}
	if produced == 0 {
		return
	}

	if !b.outputRing.Write(b.outputScratch, produced) {
		if b.overrunWarn.allow() {
			b.logf("bridge: output ring full, dropped %d frames (fill=%.1f%%)",
				produced, b.outputRing.FillFraction()*100)
		}
	}
}

// PullSamples fills dst with frames interleaved frames from the output
// ring and always returns frames. When the ring cannot satisfy the
// request the tail is zero-filled and the underrun is counted. Only
// call from the sink goroutine.
func (b *Bridge) PullSamples(dst []float32, frames int) int {
	b.pull(dst, frames)
	return frames
}

// pull is the underlying read: it returns the number of genuine (non
// zero-filled) frames delivered, which the sink adapter uses to detect
// a fully empty bridge.
func (b *Bridge) pull(dst []float32, frames int) int {
	if frames <= 0 || len(dst) < frames*b.config.Channels {
		return 0
	}
	if b.closed {
		zeroFill(dst, 0, frames*b.config.Channels)
		return 0
	}

	read := b.outputRing.Read(dst, frames)
	if read < frames {
		zeroFill(dst, read*b.config.Channels, frames*b.config.Channels)
		if b.underrunWarn.allow() {
			b.logf("bridge: pull underrun: requested %d, got %d (count=%d)",
				frames, read, b.underrunWarn.occurrences())
		}
	}
	return read
}

// FillFraction returns the output ring's fill level in [0, 1).
func (b *Bridge) FillFraction() float32 {
	if b.closed {
		return 0
	}
	return b.outputRing.FillFraction()
}

// EstimatedRate returns the EMA estimate of the producer rate in Hz, or
// 0 before the first accepted observation.
func (b *Bridge) EstimatedRate() float64 {
	return b.estimator.current()
}

// Stats is a snapshot of the bridge's observability counters.
type Stats struct {
	PushCalls       uint64
	ResampleCalls   uint64
	ChunkCalls      uint64
	InputDrops      uint64
	ResamplerErrors uint64

	EstimatedRate      float64
	ResamplerInputRate float64

	InputFrames  int
	OutputFrames int
	FillFraction float32

	InputRing  ring.Stats
	OutputRing ring.Stats
}

// Stats returns a snapshot of the bridge counters. Producer-side fields
// may lag by a call or two when snapshotted concurrently.
func (b *Bridge) Stats() Stats {
	if b.closed {
		return Stats{}
	}

	s := Stats{
		PushCalls:       b.pushCalls,
		ResampleCalls:   b.resampleCalls,
		ChunkCalls:      b.chunkCalls,
		InputDrops:      b.inputDrops,
		ResamplerErrors: b.resamplerErrors,
		EstimatedRate:   b.estimator.current(),
		InputFrames:     b.inputRing.AvailableRead(),
		OutputFrames:    b.outputRing.AvailableRead(),
		FillFraction:    b.outputRing.FillFraction(),
		InputRing:       b.inputRing.Stats(),
		OutputRing:      b.outputRing.Stats(),
	}
	if b.resampler != nil {
		s.ResamplerInputRate = b.resampler.InputRate()
	}
	return s
}

// logf writes through the configured logger, if any.
func (b *Bridge) logf(format string, v ...any) {
	if b.log != nil {
		b.log.Printf(format, v...)
	}
}

func zeroFill(dst []float32, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = 0
	}
}
