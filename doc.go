// Package audiobridge couples an emulated sound chip to a host audio
// output device across two independent clock domains.
//
// The producer side generates stereo 16-bit samples at a drifting,
// non-standard rate derived from emulation cycle timing (typically
// 44-50 kHz, varying with emulation load). The sink side consumes
// samples at a fixed host rate via a periodic pull callback. The bridge
// joins the two without audible glitches, dropout, or unbounded latency
// accumulation.
//
// # Architecture
//
// Samples flow through a three-stage pipeline:
//
//	Producer -> [int16 ring] -> resampler -> [float32 ring] -> Sink pull
//
// Both rings are lock-free single-producer/single-consumer queues.
// The resampler is a streaming linear interpolator whose input rate
// tracks an EMA estimate of the producer's effective rate, nudged by a
// slow drift controller that holds the output ring near a 25% fill
// target.
//
// # Quick Start
//
//	bridge, err := audiobridge.New(&audiobridge.Config{
//	    TargetRate:       48000,
//	    Channels:         2,
//	    OutputRingFrames: 2048,
//	    SyncBase:         3546895,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Close()
//
//	// Producer thread, once per generated frame:
//	bridge.PushSample(left, right, cyclesPerSample)
//
//	// Sink thread, on each device pull:
//	bridge.PullSamples(out, frames) // always fills frames, zero-padding on underrun
//
// For delivery to an integer-PCM device, wrap the bridge in a
// [SinkAdapter], which converts pulled float frames to 16- or 32-bit
// integers with clamping and writes them into the device buffer.
//
// # Thread Safety
//
// Exactly two goroutines may touch a bridge concurrently: the producer
// (PushSample or ProcessChunk) and the sink (PullSamples, or
// SinkAdapter.OnPull). Both hot paths are wait-free: no locks, no
// syscalls, and no allocation outside rare scratch-buffer growth.
// Close must not be called while either side is active.
package audiobridge
