package audiobridge

// Input ring sizing
const (
	// Input ring capacity target: ~10 ms of frames at the sink rate.
	inputRingDivisor = 100

	// Minimum input ring capacity in frames.
	minInputRingFrames = 16
)

// Drain loop parameters
const (
	// Minimum input frames before a drain is worthwhile.
	drainMinFrames = 16

	// Maximum input frames consumed per drain call.
	drainMaxFrames = 128

	// Extra output frames budgeted per drain beyond the ratio estimate.
	drainOutputHeadroom = 32

	// Upper bound on a single resample result. Anything past this is a
	// runaway ratio and the chunk is discarded instead of written.
	maxResampledFrames = 10000
)

// Scratch buffer sizing
const (
	// Initial float scratch capacity in frames.
	initialOutputScratchFrames = 2048

	// Initial int16 scratch capacity in frames.
	initialInputScratchFrames = 128

	// Scratch buffers grow to this multiple of the needed size.
	scratchGrowthFactor = 2
)

// Rate estimation
const (
	// EMA smoothing factor. Time constant around 1e4 samples (~0.2 s at
	// 48 kHz): fast enough to track warm-up, slow enough to ignore
	// per-frame emulator jitter.
	rateEMAAlpha = 1e-4

	// Acceptance window for instantaneous rate observations, as
	// fractions of the target rate.
	rateRejectBelow = 0.5
	rateRejectAbove = 1.5

	// Number of outlier rejections reported before going silent.
	rateOutlierWarnLimit = 5

	// Accepted observations between periodic rate log lines.
	rateLogSampleInterval = 10000
)

// Batched entry point (ProcessChunk)
const (
	// Absolute sanity window for the chunk-derived producer rate in Hz.
	chunkRateMin = 1000.0
	chunkRateMax = 200000.0

	// Rate jumps larger than this reconfigure the resampler instead of
	// a live input-rate update.
	chunkReconfigureHz = 100.0

	// Extra output frames budgeted per chunk beyond the ratio estimate.
	chunkOutputHeadroom = 10
)

// Drift controller
const (
	// Output ring fill target and the dead band around it.
	driftFillTarget = 0.25
	driftFillBand   = 0.05

	// Multiplicative ratio bias applied outside the dead band.
	driftPullFaster = 0.9998
	driftPullSlower = 1.0002
)

// Warning rate limits
const (
	// Counted filter: one warning per this many occurrences.
	warnEveryN = 100
)

// Sink adapter
const (
	// Scratch capacity as a multiple of the sink buffer size.
	sinkScratchFactor = 2

	// Integer full-scale values for the supported sink widths.
	maxInt16Value = 32767.0
	maxInt32Value = 2147483647.0

	// Supported sink sample widths in bits.
	SinkBits16 = 16
	SinkBits32 = 32

	// Seconds between periodic sink stats log lines.
	sinkStatsLogSeconds = 5
)
